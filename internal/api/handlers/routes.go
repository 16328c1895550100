package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/api/middleware"
	"github.com/dvloznov/subscription-tracker/internal/domain"
)

// Router bundles the handlers behind the API routes.
type Router struct {
	Scans         *ScansHandler
	Jobs          *JobsHandler
	Subscriptions *SubscriptionsHandler
	Calendar      *CalendarHandler
}

var statusActions = map[string]domain.SubscriptionStatus{
	"pause":  domain.SubscriptionStatusPaused,
	"cancel": domain.SubscriptionStatusCancelled,
	"resume": domain.SubscriptionStatusActive,
}

// NewMux registers every route on a new ServeMux.
func NewMux(rt Router) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Scan routes
	mux.HandleFunc("/api/scans", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.Scans.CreateScan(w, r)
	})

	// Job routes
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.Jobs.ListJobs(w, r)
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" || strings.Contains(jobID, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		rt.Jobs.GetJob(w, r, jobID)
	})

	// Subscription routes
	mux.HandleFunc("/api/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			rt.Subscriptions.ListSubscriptions(w, r)
		case http.MethodPost:
			rt.Subscriptions.CreateSubscription(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/subscriptions/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/subscriptions/")
		parts := strings.Split(path, "/")

		switch {
		case path == "summary":
			if r.Method != http.MethodGet {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			rt.Subscriptions.Summary(w, r)

		case len(parts) == 1 && parts[0] != "":
			switch r.Method {
			case http.MethodGet:
				rt.Subscriptions.GetSubscription(w, r, parts[0])
			case http.MethodDelete:
				rt.Subscriptions.DeleteSubscription(w, r, parts[0])
			default:
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}

		case len(parts) == 2 && parts[0] != "":
			status, ok := statusActions[parts[1]]
			if !ok {
				middleware.WriteError(w, http.StatusNotFound, "Not found")
				return
			}
			if r.Method != http.MethodPost {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			rt.Subscriptions.SetStatus(w, r, parts[0], status)

		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	// Calendar
	mux.HandleFunc("/api/calendar", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.Calendar.GetCalendar(w, r)
	})

	return mux
}

package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/api/middleware"
	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/dvloznov/subscription-tracker/internal/store"
	"github.com/dvloznov/subscription-tracker/internal/subscriptions"
	"github.com/rs/zerolog"
)

// MonthLayout is the format of the calendar month parameter.
const MonthLayout = "2006-01"

// CalendarResponse lists the billing days of one month.
type CalendarResponse struct {
	Month string                           `json:"month"`
	Days  map[string][]domain.Subscription `json:"days"`
}

// CalendarHandler serves the billing calendar.
type CalendarHandler struct {
	store store.Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewCalendarHandler creates a new calendar handler.
func NewCalendarHandler(s store.Store, log zerolog.Logger) *CalendarHandler {
	return &CalendarHandler{
		store: s,
		now:   time.Now,
		log:   log,
	}
}

// GetCalendar handles GET /api/calendar?month=YYYY-MM. Without a month the
// current one is used. Only active subscriptions are placed.
func (h *CalendarHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, h.log)
	month := h.now().UTC()
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.Parse(MonthLayout, m)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "month: expected YYYY-MM")
			return
		}
		month = parsed
	}

	subs, err := h.store.List(r.Context(), store.Filter{Status: domain.SubscriptionStatusActive})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list subscriptions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build calendar")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, CalendarResponse{
		Month: month.Format(MonthLayout),
		Days:  subscriptions.BillingCalendar(subs, month.Year(), month.Month(), time.UTC),
	})
}

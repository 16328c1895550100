package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/api/middleware"
	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/dvloznov/subscription-tracker/internal/store"
	"github.com/dvloznov/subscription-tracker/internal/subscriptions"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CreateSubscriptionRequest is the body of POST /api/subscriptions.
type CreateSubscriptionRequest struct {
	Name            string          `json:"name"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Frequency       string          `json:"frequency"`
	NextBillingDate string          `json:"next_billing_date"`
	Notes           string          `json:"notes,omitempty"`
}

// SubscriptionsHandler serves the subscription portfolio.
type SubscriptionsHandler struct {
	store store.Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewSubscriptionsHandler creates a new subscriptions handler.
func NewSubscriptionsHandler(s store.Store, log zerolog.Logger) *SubscriptionsHandler {
	return &SubscriptionsHandler{
		store: s,
		now:   time.Now,
		log:   log,
	}
}

// ListSubscriptions handles GET /api/subscriptions
func (h *SubscriptionsHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, h.log)
	query := r.URL.Query()

	var filter store.Filter
	if status := query.Get("status"); status != "" {
		parsed, err := domain.ParseSubscriptionStatus(status)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = parsed
	}
	switch method := domain.DetectionMethod(query.Get("method")); method {
	case "":
	case domain.DetectionMethodAuto, domain.DetectionMethodManual:
		filter.DetectionMethod = method
	default:
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid detection method %q", method))
		return
	}

	subs, err := h.store.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list subscriptions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list subscriptions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// CreateSubscription handles POST /api/subscriptions
func (h *SubscriptionsHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, h.log)
	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	in := subscriptions.ManualInput{
		Name:      req.Name,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Frequency: domain.Frequency(req.Frequency),
		Notes:     req.Notes,
	}
	if req.NextBillingDate != "" {
		next, err := time.Parse(DateLayout, req.NextBillingDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "next_billing_date: expected YYYY-MM-DD")
			return
		}
		in.NextBillingDate = next
	}

	sub, err := subscriptions.NewManual(in, h.now())
	if errors.Is(err, subscriptions.ErrInvalidSubscription) {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to build manual subscription")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create subscription")
		return
	}

	if err := h.store.Add(r.Context(), *sub); err != nil {
		log.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to store subscription")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create subscription")
		return
	}

	log.Info().Str("subscription_id", sub.ID).Str("name", sub.Name).Msg("Manual subscription added")
	middleware.WriteJSON(w, http.StatusCreated, sub)
}

// GetSubscription handles GET /api/subscriptions/{id}
func (h *SubscriptionsHandler) GetSubscription(w http.ResponseWriter, r *http.Request, id string) {
	sub, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err, id)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sub)
}

// SetStatus handles POST /api/subscriptions/{id}/pause, /cancel and /resume
func (h *SubscriptionsHandler) SetStatus(w http.ResponseWriter, r *http.Request, id string, status domain.SubscriptionStatus) {
	log := requestLog(r, h.log)
	sub, err := h.store.SetStatus(r.Context(), id, status)
	if err != nil {
		h.writeStoreError(w, r, err, id)
		return
	}

	log.Info().Str("subscription_id", id).Str("status", string(status)).Msg("Subscription status changed")
	middleware.WriteJSON(w, http.StatusOK, sub)
}

// DeleteSubscription handles DELETE /api/subscriptions/{id}
func (h *SubscriptionsHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Remove(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /api/subscriptions/summary
func (h *SubscriptionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, h.log)
	subs, err := h.store.List(r.Context(), store.Filter{Status: domain.SubscriptionStatusActive})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list subscriptions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to summarize subscriptions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, subscriptions.Summarize(subs))
}

func (h *SubscriptionsHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error, id string) {
	log := requestLog(r, h.log)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	log.Error().Err(err).Str("subscription_id", id).Msg("Subscription store failed")
	middleware.WriteError(w, http.StatusInternalServerError, "Subscription store failed")
}

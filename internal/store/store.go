// Package store keeps the current subscription portfolio: the latest
// detection run merged with subscriptions added by hand.
package store

import (
	"context"
	"errors"

	"github.com/dvloznov/subscription-tracker/internal/domain"
)

// ErrNotFound is returned when no subscription has the requested ID.
var ErrNotFound = errors.New("subscription not found")

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status          domain.SubscriptionStatus
	DetectionMethod domain.DetectionMethod
}

// Store holds subscriptions. Implementations return copies, so callers may
// modify results freely.
type Store interface {
	// ReplaceDetected swaps every AUTO subscription for the given detection
	// result. MANUAL subscriptions are kept. A re-detected subscription keeps
	// the status the user gave it.
	ReplaceDetected(ctx context.Context, detected []domain.Subscription) error

	// Add stores a single subscription, replacing any with the same ID.
	Add(ctx context.Context, sub domain.Subscription) error

	// List returns matching subscriptions ordered by next billing date.
	List(ctx context.Context, filter Filter) ([]domain.Subscription, error)

	Get(ctx context.Context, id string) (*domain.Subscription, error)

	SetStatus(ctx context.Context, id string, status domain.SubscriptionStatus) (*domain.Subscription, error)

	Remove(ctx context.Context, id string) error
}

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/dvloznov/subscription-tracker/internal/subscriptions"
)

// Memory is an in-memory Store safe for concurrent use.
// Data is lost on restart; BigQuery snapshots keep the history.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscription
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		subs: make(map[string]*domain.Subscription),
	}
}

// ReplaceDetected implements Store.
func (m *Memory) ReplaceDetected(ctx context.Context, detected []domain.Subscription) error {
	for _, sub := range detected {
		if sub.ID == "" {
			return fmt.Errorf("ReplaceDetected: subscription ID is required")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]*domain.Subscription, len(detected))
	for id, sub := range m.subs {
		if sub.DetectionMethod == domain.DetectionMethodManual {
			next[id] = sub
		}
	}

	for _, sub := range detected {
		c := clone(sub)
		if prev, ok := m.subs[sub.ID]; ok && prev.DetectionMethod != domain.DetectionMethodManual {
			c.Status = prev.Status
		}
		next[sub.ID] = c
	}

	m.subs = next
	return nil
}

// Add implements Store.
func (m *Memory) Add(ctx context.Context, sub domain.Subscription) error {
	if sub.ID == "" {
		return fmt.Errorf("Add: subscription ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs[sub.ID] = clone(sub)
	return nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context, filter Filter) ([]domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		if filter.DetectionMethod != "" && sub.DetectionMethod != filter.DetectionMethod {
			continue
		}
		result = append(result, *clone(*sub))
	}

	subscriptions.SortByNextBilling(result)
	return result, nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[id]
	if !ok {
		return nil, fmt.Errorf("Get: %s: %w", id, ErrNotFound)
	}
	return clone(*sub), nil
}

// SetStatus implements Store.
func (m *Memory) SetStatus(ctx context.Context, id string, status domain.SubscriptionStatus) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return nil, fmt.Errorf("SetStatus: %s: %w", id, ErrNotFound)
	}
	sub.Status = status
	return clone(*sub), nil
}

// Remove implements Store.
func (m *Memory) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[id]; !ok {
		return fmt.Errorf("Remove: %s: %w", id, ErrNotFound)
	}
	delete(m.subs, id)
	return nil
}

// clone copies everything a caller could mutate through the result.
func clone(sub domain.Subscription) *domain.Subscription {
	c := sub
	if sub.PriceChange != nil {
		pc := *sub.PriceChange
		c.PriceChange = &pc
	}
	if sub.Sharing != nil {
		sh := *sub.Sharing
		sh.SharedWith = append([]string(nil), sub.Sharing.SharedWith...)
		c.Sharing = &sh
	}
	if sub.Metadata != nil {
		md := *sub.Metadata
		if sub.Metadata.StartDate != nil {
			start := *sub.Metadata.StartDate
			md.StartDate = &start
		}
		c.Metadata = &md
	}
	if sub.History != nil {
		c.History = append([]domain.HistoryEntry{}, sub.History...)
	}
	if sub.Tags != nil {
		c.Tags = append([]string{}, sub.Tags...)
	}
	return &c
}

// Ensure Memory implements Store.
var _ Store = (*Memory)(nil)

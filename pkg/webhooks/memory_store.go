package webhooks

import (
	"context"
	"sync"
	"time"

	"github.com/retailops/backoffice/pkg/events"
)

// MemoryStore is an in-memory Store, used in tests and single-process
// deployments that accept losing registrations on restart
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[string]*Subscription),
	}
}

// Create validates and stores a new subscription
func (s *MemoryStore) Create(ctx context.Context, name, url string, eventNames []events.WebhookEventName) (*Subscription, error) {
	if err := validateRegistration(name, url, eventNames); err != nil {
		return nil, err
	}

	sub, err := newSubscription(name, url, eventNames)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.subs[sub.ID] = sub
	s.mu.Unlock()

	// Return a copy so the caller cannot mutate stored state
	return sub.clone(), nil
}

// Get retrieves a subscription by ID
func (s *MemoryStore) Get(ctx context.Context, id string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sub.clone(), nil
}

// List returns all subscriptions, active and inactive
func (s *MemoryStore) List(ctx context.Context) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub.clone())
	}
	return subs, nil
}

// ListActiveFor returns active subscriptions subscribed to the event
func (s *MemoryStore) ListActiveFor(ctx context.Context, name events.WebhookEventName) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var subs []*Subscription
	for _, sub := range s.subs {
		if sub.Active && sub.Matches(name) {
			subs = append(subs, sub.clone())
		}
	}
	return subs, nil
}

// Deactivate soft-deletes a subscription
func (s *MemoryStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return ErrNotFound
	}
	sub.Active = false
	return nil
}

// RecordSuccess increments the success counter and sets last-triggered.
// The store mutex serializes concurrent counter updates.
func (s *MemoryStore) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return ErrNotFound
	}
	sub.SuccessCount++
	t := at
	sub.LastTriggered = &t
	return nil
}

// RecordFailure increments the failure counter
func (s *MemoryStore) RecordFailure(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return ErrNotFound
	}
	sub.FailureCount++
	return nil
}

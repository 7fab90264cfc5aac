package webhooks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/retailops/backoffice/pkg/events"
)

// Subscription represents an external HTTP endpoint registered to receive
// a subset of webhook events. Secret is immutable after creation and is
// returned only by the create call. SuccessCount and FailureCount are
// monotonically non-decreasing delivery counters.
type Subscription struct {
	ID            string                    `json:"id"`
	Name          string                    `json:"name"`
	URL           string                    `json:"url"`
	Events        []events.WebhookEventName `json:"events"`
	Secret        string                    `json:"secret,omitempty"`
	Active        bool                      `json:"active"`
	CreatedAt     time.Time                 `json:"created_at"`
	LastTriggered *time.Time                `json:"last_triggered,omitempty"`
	SuccessCount  int64                     `json:"success_count"`
	FailureCount  int64                     `json:"failure_count"`
}

// Matches reports whether the subscription is subscribed to the event
func (s *Subscription) Matches(name events.WebhookEventName) bool {
	for _, e := range s.Events {
		if e == name {
			return true
		}
	}
	return false
}

// clone returns a deep copy sharing no mutable state with s
func (s *Subscription) clone() *Subscription {
	c := *s
	c.Events = append([]events.WebhookEventName(nil), s.Events...)
	if s.LastTriggered != nil {
		t := *s.LastTriggered
		c.LastTriggered = &t
	}
	return &c
}

// Redacted returns a copy of the subscription without the secret, for use
// in list and get responses
func (s *Subscription) Redacted() *Subscription {
	c := s.clone()
	c.Secret = ""
	return c
}

// Store persists webhook subscriptions. Counter updates must not lose
// increments under concurrent deliveries to the same subscription.
type Store interface {
	// Create validates and stores a new subscription. The returned record
	// includes the generated secret; this is the only call that exposes it.
	Create(ctx context.Context, name, url string, eventNames []events.WebhookEventName) (*Subscription, error)

	// Get retrieves a subscription by ID
	Get(ctx context.Context, id string) (*Subscription, error)

	// List returns all subscriptions, active and inactive
	List(ctx context.Context) ([]*Subscription, error)

	// ListActiveFor returns active subscriptions subscribed to the event
	ListActiveFor(ctx context.Context, name events.WebhookEventName) ([]*Subscription, error)

	// Deactivate soft-deletes a subscription. There is no reactivation path.
	Deactivate(ctx context.Context, id string) error

	// RecordSuccess increments the success counter by exactly one and sets
	// the last-triggered time
	RecordSuccess(ctx context.Context, id string, at time.Time) error

	// RecordFailure increments the failure counter by exactly one
	RecordFailure(ctx context.Context, id string) error
}

// ErrNotFound is returned when a subscription does not exist
var ErrNotFound = fmt.Errorf("webhook subscription not found")

// validateRegistration checks the caller-supplied fields of a new
// subscription
func validateRegistration(name, url string, eventNames []events.WebhookEventName) error {
	if name == "" {
		return fmt.Errorf("webhook name is required")
	}
	if url == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if len(eventNames) == 0 {
		return fmt.Errorf("at least one event is required")
	}
	known := make(map[events.WebhookEventName]struct{})
	for _, n := range events.WebhookEventNames() {
		known[n] = struct{}{}
	}
	for _, n := range eventNames {
		if _, ok := known[n]; !ok {
			return fmt.Errorf("unknown webhook event %q", n)
		}
	}
	return nil
}

// newSubscription builds a subscription record with generated ID and secret
func newSubscription(name, url string, eventNames []events.WebhookEventName) (*Subscription, error) {
	secret, err := newSecret()
	if err != nil {
		return nil, err
	}
	return &Subscription{
		ID:        uuid.NewString(),
		Name:      name,
		URL:       url,
		Events:    append([]events.WebhookEventName(nil), eventNames...),
		Secret:    secret,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// newSecret generates a 256-bit random signing secret
func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

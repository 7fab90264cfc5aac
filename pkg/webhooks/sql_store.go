package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/retailops/backoffice/pkg/events"
)

// SQLStore is a durable Store backed by database/sql. The DDL and the
// $N placeholder style work with both the sqlite3 and pq drivers.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a durable webhook store and ensures its table exists
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &SQLStore{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure webhook_subscriptions table: %w", err)
	}
	return s, nil
}

// ensureTable creates the webhook_subscriptions table if it doesn't exist
func (s *SQLStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS webhook_subscriptions (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		url TEXT NOT NULL,
		events TEXT NOT NULL,
		secret VARCHAR(64) NOT NULL,
		active BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_triggered TIMESTAMP,
		success_count BIGINT NOT NULL DEFAULT 0,
		failure_count BIGINT NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_webhook_subscriptions_active ON webhook_subscriptions(active);
	`

	_, err := s.db.Exec(query)
	return err
}

// Create validates and stores a new subscription
func (s *SQLStore) Create(ctx context.Context, name, url string, eventNames []events.WebhookEventName) (*Subscription, error) {
	if err := validateRegistration(name, url, eventNames); err != nil {
		return nil, err
	}

	sub, err := newSubscription(name, url, eventNames)
	if err != nil {
		return nil, err
	}

	eventsJSON, err := json.Marshal(sub.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal events: %w", err)
	}

	query := `
		INSERT INTO webhook_subscriptions (
			id, name, url, events, secret, active, created_at,
			success_count, failure_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0)
	`
	if _, err := s.db.ExecContext(ctx, query,
		sub.ID, sub.Name, sub.URL, string(eventsJSON), sub.Secret, sub.Active, sub.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert subscription: %w", err)
	}

	return sub, nil
}

// Get retrieves a subscription by ID
func (s *SQLStore) Get(ctx context.Context, id string) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return sub, err
}

// List returns all subscriptions, active and inactive
func (s *SQLStore) List(ctx context.Context) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// ListActiveFor returns active subscriptions subscribed to the event.
// Event membership is checked in memory; the events column holds a JSON
// array and the store stays portable across drivers.
func (s *SQLStore) ListActiveFor(ctx context.Context, name events.WebhookEventName) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	defer rows.Close()

	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, err
	}

	matched := subs[:0]
	for _, sub := range subs {
		if sub.Matches(name) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

// Deactivate soft-deletes a subscription
func (s *SQLStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_subscriptions SET active = $2 WHERE id = $1`, id, false)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	return checkAffected(res)
}

// RecordSuccess increments the success counter and sets last-triggered.
// The increment happens in the database, so concurrent deliveries to the
// same subscription never lose updates.
func (s *SQLStore) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_subscriptions
		 SET success_count = success_count + 1, last_triggered = $2
		 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to record success: %w", err)
	}
	return checkAffected(res)
}

// RecordFailure increments the failure counter
func (s *SQLStore) RecordFailure(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_subscriptions
		 SET failure_count = failure_count + 1
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return checkAffected(res)
}

const selectColumns = `
	SELECT id, name, url, events, secret, active, created_at,
	       last_triggered, success_count, failure_count
	FROM webhook_subscriptions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var sub Subscription
	var eventsJSON string
	var lastTriggered sql.NullTime

	if err := row.Scan(
		&sub.ID, &sub.Name, &sub.URL, &eventsJSON, &sub.Secret, &sub.Active,
		&sub.CreatedAt, &lastTriggered, &sub.SuccessCount, &sub.FailureCount,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(eventsJSON), &sub.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events for subscription %s: %w", sub.ID, err)
	}
	if lastTriggered.Valid {
		t := lastTriggered.Time
		sub.LastTriggered = &t
	}
	return &sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]*Subscription, error) {
	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/retailops/backoffice/pkg/events"
	"github.com/retailops/backoffice/pkg/observability"
)

// Envelope is the JSON body POSTed to subscribers
type Envelope struct {
	Event     events.WebhookEventName `json:"event"`
	Timestamp time.Time               `json:"timestamp"`
	Data      *events.Payload         `json:"data"`
}

// DeliveryRecord describes one delivery attempt, kept in a bounded
// in-memory log for the admin API
type DeliveryRecord struct {
	ID             string                  `json:"id"`
	SubscriptionID string                  `json:"subscription_id"`
	Event          events.WebhookEventName `json:"event"`
	URL            string                  `json:"url"`
	Success        bool                    `json:"success"`
	StatusCode     int                     `json:"status_code,omitempty"`
	Error          string                  `json:"error,omitempty"`
	Duration       time.Duration           `json:"duration"`
	At             time.Time               `json:"at"`
}

// DelivererConfig configures the delivery engine
type DelivererConfig struct {
	// AttemptTimeout bounds each outbound HTTP call
	AttemptTimeout time.Duration

	// MaxConcurrent caps parallel deliveries per emission
	MaxConcurrent int

	// RecentLogSize bounds the in-memory delivery log
	RecentLogSize int
}

// DefaultDelivererConfig returns the default delivery configuration
func DefaultDelivererConfig() DelivererConfig {
	return DelivererConfig{
		AttemptTimeout: 10 * time.Second,
		MaxConcurrent:  16,
		RecentLogSize:  1000,
	}
}

// Deliverer performs signed HTTP delivery to matched, active subscribers
// and updates their counters. One attempt per subscriber per emission; no
// retries.
type Deliverer struct {
	store   Store
	client  *http.Client
	limiter Limiter
	config  DelivererConfig
	recent  *lru.Cache[string, *DeliveryRecord]
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewDeliverer creates a delivery engine over the given store. limiter may
// be nil to disable rate limiting.
func NewDeliverer(store Store, limiter Limiter, cfg DelivererConfig, logger *observability.Logger, metrics *observability.Metrics) (*Deliverer, error) {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 16
	}
	if cfg.RecentLogSize <= 0 {
		cfg.RecentLogSize = 1000
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if metrics == nil {
		metrics = observability.InitMetrics()
	}

	recent, err := lru.New[string, *DeliveryRecord](cfg.RecentLogSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery log: %w", err)
	}

	return &Deliverer{
		store: store,
		client: &http.Client{
			Timeout:   cfg.AttemptTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: limiter,
		config:  cfg,
		recent:  recent,
		logger:  logger,
		metrics: metrics,
		tracer:  observability.Tracer("webhooks"),
	}, nil
}

// Deliver POSTs the payload to every active subscription subscribed to the
// event, concurrently, and waits for all attempts to settle. One
// subscriber's failure or slowness never blocks or fails another's
// delivery; outcomes land in the per-subscription counters, not in a
// return value.
func (d *Deliverer) Deliver(ctx context.Context, name events.WebhookEventName, payload *events.Payload) {
	subs, err := d.store.ListActiveFor(ctx, name)
	if err != nil {
		d.logger.WithError(err).WithField("event", string(name)).Error("failed to resolve webhook subscriptions")
		return
	}
	if len(subs) == 0 {
		return
	}

	body, err := json.Marshal(Envelope{
		Event:     name,
		Timestamp: payload.Timestamp,
		Data:      payload,
	})
	if err != nil {
		d.logger.WithError(err).WithField("event", string(name)).Error("failed to marshal webhook envelope")
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.MaxConcurrent)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			// Settle-all: the attempt records its own outcome and never
			// returns an error, so one failure cannot cancel the group.
			d.attempt(ctx, name, sub, body)
			return nil
		})
	}
	g.Wait()
}

// attempt performs one signed delivery and records its outcome
func (d *Deliverer) attempt(ctx context.Context, name events.WebhookEventName, sub *Subscription, body []byte) {
	ctx, span := d.tracer.Start(ctx, "webhooks.deliver",
		trace.WithAttributes(
			attribute.String("webhook.event", string(name)),
			attribute.String("webhook.subscription_id", sub.ID),
		))
	defer span.End()

	// Counter updates run on the parent context so an expired attempt
	// cannot also fail the bookkeeping write.
	sendCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
	defer cancel()

	logger := d.logger.WithFields(map[string]interface{}{
		"event":           string(name),
		"subscription_id": sub.ID,
		"url":             sub.URL,
	})

	if d.limiter != nil && !d.limiter.Allow(sendCtx, sub.ID) {
		d.metrics.DeliveriesRateLimited.WithLabelValues(string(name)).Inc()
		d.recordOutcome(ctx, name, sub, false, 0, fmt.Errorf("rate limit exceeded"), 0)
		logger.Warn("webhook delivery rate limited")
		return
	}

	start := time.Now()
	statusCode, err := d.send(sendCtx, name, sub, body)
	duration := time.Since(start)

	d.metrics.DeliveryDuration.WithLabelValues(string(name)).Observe(duration.Seconds())
	d.recordOutcome(ctx, name, sub, err == nil, statusCode, err, duration)

	if err != nil {
		logger.WithError(err).Warn("webhook delivery failed")
		return
	}
	logger.WithField("status_code", statusCode).Debug("webhook delivered")
}

// send performs the signed POST and returns the response status code
func (d *Deliverer) send(ctx context.Context, name events.WebhookEventName, sub *Subscription, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Backoffice-Event", string(name))
	req.Header.Set("X-Backoffice-Signature", Signature(body, sub.Secret))
	req.Header.Set("X-Backoffice-Delivery", time.Now().UTC().Format(time.RFC3339))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// recordOutcome updates counters and the in-memory delivery log. A success
// increments success_count by exactly 1 and sets last_triggered; anything
// else increments failure_count by exactly 1.
func (d *Deliverer) recordOutcome(ctx context.Context, name events.WebhookEventName, sub *Subscription, success bool, statusCode int, attemptErr error, duration time.Duration) {
	rec := &DeliveryRecord{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		Event:          name,
		URL:            sub.URL,
		Success:        success,
		StatusCode:     statusCode,
		Duration:       duration,
		At:             time.Now().UTC(),
	}

	var err error
	if success {
		d.metrics.DeliveriesTotal.WithLabelValues(string(name), "success").Inc()
		err = d.store.RecordSuccess(ctx, sub.ID, rec.At)
	} else {
		if attemptErr != nil {
			rec.Error = attemptErr.Error()
		}
		d.metrics.DeliveriesTotal.WithLabelValues(string(name), "failure").Inc()
		err = d.store.RecordFailure(ctx, sub.ID)
	}
	if err != nil {
		d.logger.WithError(err).WithField("subscription_id", sub.ID).Error("failed to update delivery counters")
	}

	d.recent.Add(rec.ID, rec)
}

// RecentDeliveries returns the logged attempts for a subscription, newest
// last, up to limit
func (d *Deliverer) RecentDeliveries(subscriptionID string, limit int) []*DeliveryRecord {
	var recs []*DeliveryRecord
	for _, key := range d.recent.Keys() {
		if rec, ok := d.recent.Peek(key); ok && rec.SubscriptionID == subscriptionID {
			recs = append(recs, rec)
		}
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs
}

// Signature computes the HMAC-SHA256 signature sent in the
// X-Backoffice-Signature header
func Signature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature authenticates a received webhook body against its
// signature header. Intended for subscriber-side use.
func VerifySignature(body []byte, signature, secret string) bool {
	expected := Signature(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/retailops/backoffice/pkg/async"
	"github.com/retailops/backoffice/pkg/observability"
)

// Handler is an in-process callback subscribed to an event type
type Handler func(ctx context.Context, payload *Payload) error

// Deliverer fans a payload out to external webhook subscribers
type Deliverer interface {
	Deliver(ctx context.Context, name WebhookEventName, payload *Payload)
}

// AuditSink persists an audit record for compliance-sensitive events
type AuditSink interface {
	Record(ctx context.Context, payload *Payload) error
}

// Dispatcher fans domain events out to in-process handlers, webhook
// subscribers and the audit trail. It is constructed explicitly and
// injected at wiring time; there is no package-level registry.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	deliverer Deliverer
	auditor   AuditSink

	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewDispatcher creates a dispatcher with no handlers registered
func NewDispatcher(logger *observability.Logger, metrics *observability.Metrics) *Dispatcher {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if metrics == nil {
		metrics = observability.InitMetrics()
	}
	return &Dispatcher{
		handlers: make(map[EventType][]Handler),
		logger:   logger,
		metrics:  metrics,
	}
}

// SetDeliverer wires the webhook delivery engine. Events without a webhook
// mapping never reach it.
func (d *Dispatcher) SetDeliverer(deliverer Deliverer) {
	d.deliverer = deliverer
}

// SetAuditSink wires the audit trail. Only allow-listed event types are
// recorded.
func (d *Dispatcher) SetAuditSink(sink AuditSink) {
	d.auditor = sink
}

// Register appends a handler to the list for the given event type.
// Handlers for one type run concurrently and in no particular order.
func (d *Dispatcher) Register(eventType EventType, handler Handler) error {
	if !eventType.Valid() {
		return fmt.Errorf("unknown event type %q", eventType)
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
	return nil
}

// Emit builds the payload, runs the registered handlers, delivers to
// webhook subscribers if the event type has an external mapping, and
// writes an audit record if the type is allow-listed. Stages run in that
// fixed order. Emit never returns an error: failures in any stage are
// terminal for that stage only and are invisible to the caller.
func (d *Dispatcher) Emit(ctx context.Context, eventType EventType, opts Options) *Payload {
	payload := &Payload{
		EventType:    eventType,
		ResourceType: opts.ResourceType,
		ResourceID:   opts.ResourceID,
		ResourceName: opts.ResourceName,
		Data:         opts.Data,
		UserID:       opts.UserID,
		UserName:     opts.UserName,
		BranchID:     opts.BranchID,
		BranchName:   opts.BranchName,
		Timestamp:    time.Now().UTC(),
	}

	if !eventType.Valid() {
		d.logger.WithField("event_type", string(eventType)).Warn("emit of unknown event type, skipping dispatch")
		return payload
	}

	d.metrics.EventsEmittedTotal.WithLabelValues(string(eventType)).Inc()

	d.runHandlers(ctx, eventType, payload)

	if name, ok := WebhookName(eventType); ok && d.deliverer != nil {
		d.deliverer.Deliver(ctx, name, payload)
	}

	if Auditable(eventType) && d.auditor != nil {
		d.metrics.AuditWritesTotal.Inc()
		if err := d.auditor.Record(ctx, payload); err != nil {
			d.metrics.AuditWriteFailuresTotal.Inc()
			d.logger.WithError(err).WithField("event_type", string(eventType)).Error("audit write failed")
		}
	}

	return payload
}

// EmitAsync runs Emit in a background goroutine for call sites that do not
// need the payload back. The whole pipeline is bounded by the given timeout.
func (d *Dispatcher) EmitAsync(ctx context.Context, eventType EventType, opts Options) {
	async.SafeGoNoError(ctx, 30*time.Second, "event dispatch", func(ctx context.Context) {
		d.Emit(ctx, eventType, opts)
	})
}

// runHandlers executes every handler registered for the event type
// concurrently and waits for all of them. Each handler's failure or panic
// is caught and logged independently; a failing handler prevents neither
// its siblings nor the later stages.
func (d *Dispatcher) runHandlers(ctx context.Context, eventType EventType, payload *Payload) {
	d.mu.RLock()
	handlers := d.handlers[eventType]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.metrics.HandlerFailuresTotal.WithLabelValues(string(eventType)).Inc()
					d.logger.WithFields(map[string]interface{}{
						"event_type": string(eventType),
						"panic":      r,
						"stack":      string(debug.Stack()),
					}).Error("event handler panicked")
				}
			}()

			start := time.Now()
			err := h(ctx, payload)
			d.metrics.HandlerDuration.WithLabelValues(string(eventType)).Observe(time.Since(start).Seconds())

			if err != nil {
				d.metrics.HandlerFailuresTotal.WithLabelValues(string(eventType)).Inc()
				d.logger.WithError(err).WithField("event_type", string(eventType)).Error("event handler failed")
			}
		}(handler)
	}
	wg.Wait()
}

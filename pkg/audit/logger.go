package audit

import (
	"context"

	"github.com/retailops/backoffice/pkg/events"
)

// Logger is the interface for audit trail persistence
type Logger interface {
	// Record appends an audit entry
	Record(ctx context.Context, entry *Entry) error

	// Close closes the logger and flushes any buffered entries
	Close() error
}

// NopLogger discards all entries; used when auditing is disabled
type NopLogger struct{}

func (NopLogger) Record(ctx context.Context, entry *Entry) error { return nil }
func (NopLogger) Close() error                                   { return nil }

// Sink adapts a Logger to the dispatcher's audit stage, translating event
// payloads into audit entries. The entry actor is the acting user's name.
type Sink struct {
	logger Logger
}

// NewSink creates a dispatcher audit sink over the given logger
func NewSink(logger Logger) *Sink {
	return &Sink{logger: logger}
}

// Record persists the payload as an audit entry
func (s *Sink) Record(ctx context.Context, payload *events.Payload) error {
	return s.logger.Record(ctx, &Entry{
		EventType:    string(payload.EventType),
		ResourceType: payload.ResourceType,
		ResourceID:   payload.ResourceID,
		ResourceName: payload.ResourceName,
		Actor:        payload.UserName,
		BranchID:     payload.BranchID,
		Timestamp:    payload.Timestamp,
	})
}

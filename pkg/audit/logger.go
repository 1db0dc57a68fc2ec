package audit

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/stockroom/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close flushes and releases the logger
	Close() error
}

// NewEvent creates an event stamped with the current time and the request ID found in ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
	}
}

// NewNoOpLogger returns a logger that discards events
func NewNoOpLogger() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(context.Context, *AuditEvent) error { return nil }
func (noOpLogger) Close() error                           { return nil }

// RecordingLogger keeps events in memory. It backs tests and dry runs.
type RecordingLogger struct {
	mu     sync.Mutex
	events []*AuditEvent
}

func (l *RecordingLogger) Log(_ context.Context, event *AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *RecordingLogger) Close() error { return nil }

// Events returns a copy of the recorded events
func (l *RecordingLogger) Events() []*AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

// OfType returns the recorded events of the given type
func (l *RecordingLogger) OfType(eventType EventType) []*AuditEvent {
	var out []*AuditEvent
	for _, e := range l.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

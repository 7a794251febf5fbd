// Package audit records operational events as JSON lines. It is
// telemetry, not integrity: the tamper-evident record of execution is the
// witness chain; this log exists so operators can see loads, denials and
// failures without replaying one.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventLoad   EventType = "LOAD"
	EventExec   EventType = "EXEC"
	EventDeny   EventType = "DENY"
	EventSystem EventType = "SYSTEM"
)

// Event represents a structured audit record.
type Event struct {
	ID        string                 `json:"id"`
	RealmID   string                 `json:"realm_id"`
	Subject   string                 `json:"subject"`
	Type      EventType              `json:"type"`
	Action    string                 `json:"action"`
	Resource  string                 `json:"resource"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, realmID, subject string, eventType EventType, action, resource string, metadata map[string]interface{}) error
}

// logger implements Logger, writing structured JSON to a configurable Writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to os.Stderr.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stderr)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &logger{writer: w}
}

func (l *logger) Record(ctx context.Context, realmID, subject string, eventType EventType, action, resource string, metadata map[string]interface{}) error {
	event := Event{
		ID:        uuid.New().String(),
		RealmID:   realmID,
		Subject:   subject,
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(data, '\n')...))
	return err
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, string, string, EventType, string, string, map[string]interface{}) error {
	return nil
}

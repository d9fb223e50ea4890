// Package events publishes pipeline lifecycle events to NATS for downstream
// consumers (notification workers, dashboards). Publishing is best-effort:
// a dead broker degrades to log lines, never to a failed scan.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	SystemStarted        = "system_started"
	SystemStopped        = "system_stopped"
	ScanStarted          = "scan_started"
	ScanCompleted        = "scan_completed"
	HighValueOpportunity = "high_value_opportunity_detected"
)

// Event is the wire envelope for every subject.
type Event struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// Sink delivers events somewhere. Implementations must not block the
// pipeline on delivery failures.
type Sink interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// NoopSink drops everything. Used when no broker is configured.
type NoopSink struct{}

func (NoopSink) Publish(context.Context, Event) {}
func (NoopSink) Close()                         {}

func marshalEvent(event Event) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("event marshal failed", "type", event.Type, "err", err)
		return nil, false
	}
	return data, true
}

package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/david/tender-intel/internal/resilience"
	"github.com/nats-io/nats.go"
)

// NATSSink publishes events onto one subject per event type under a common
// prefix, e.g. tenderintel.events.scan_completed.
type NATSSink struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
}

type NATSOptions struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

func NewNATSSink(url, prefix string, options NATSOptions) (*NATSSink, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	if prefix == "" {
		prefix = "tenderintel.events"
	}

	conn, err := nats.Connect(
		url,
		nats.Name("tender-intel"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSSink{conn: conn, prefix: prefix, executor: options.ResilienceExecutor}, nil
}

// Publish sends the event and logs on failure instead of returning it. The
// scan result is authoritative in the store; the event stream is advisory.
func (s *NATSSink) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, ok := marshalEvent(event)
	if !ok {
		return
	}
	subject := s.prefix + "." + event.Type

	call := func(context.Context) error {
		return s.conn.Publish(subject, data)
	}

	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		slog.Warn("event publish failed", "subject", subject, "err", err)
	}
}

func (s *NATSSink) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func classifyPublishError(err error) resilience.ErrorClassification {
	retryable := errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers)
	return resilience.ErrorClassification{Retryable: retryable, RecordFailure: true}
}

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the relay instruments. A nil *Metrics records nothing.
type Metrics struct {
	callsInitiated metric.Int64Counter
	callsFailed    metric.Int64Counter
	callsAccepted  metric.Int64Counter
	callsEnded     metric.Int64Counter
	dropped        metric.Int64Counter
	connections    metric.Int64UpDownCounter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.callsInitiated, err = meter.Int64Counter(
		"signal_calls_initiated_total",
		metric.WithDescription("Calls that started ringing"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("calls initiated counter: %w", err)
	}
	if m.callsFailed, err = meter.Int64Counter(
		"signal_calls_failed_total",
		metric.WithDescription("Call initiations refused, by reason"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("calls failed counter: %w", err)
	}
	if m.callsAccepted, err = meter.Int64Counter(
		"signal_calls_accepted_total",
		metric.WithDescription("Calls that reached connected"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("calls accepted counter: %w", err)
	}
	if m.callsEnded, err = meter.Int64Counter(
		"signal_calls_ended_total",
		metric.WithDescription("Calls removed from the table, by cause"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("calls ended counter: %w", err)
	}
	if m.dropped, err = meter.Int64Counter(
		"signal_messages_dropped_total",
		metric.WithDescription("Signaling messages dropped, by message type"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("dropped counter: %w", err)
	}
	if m.connections, err = meter.Int64UpDownCounter(
		"signal_connections",
		metric.WithDescription("Open signaling connections"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("connections counter: %w", err)
	}
	return m, nil
}

// End causes.
const (
	CauseEnded        = "ended"
	CauseRejected     = "rejected"
	CauseDisconnected = "disconnected"
)

func (m *Metrics) CallInitiated(ctx context.Context) {
	if m == nil {
		return
	}
	m.callsInitiated.Add(ctx, 1)
}

func (m *Metrics) CallFailed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.callsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) CallAccepted(ctx context.Context) {
	if m == nil {
		return
	}
	m.callsAccepted.Add(ctx, 1)
}

func (m *Metrics) CallEnded(ctx context.Context, cause string) {
	if m == nil {
		return
	}
	m.callsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
}

func (m *Metrics) MessageDropped(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("type", msgType)))
}

func (m *Metrics) ConnectionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, 1)
}

func (m *Metrics) ConnectionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, -1)
}

package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/milestone"
)

const (
	// InstrumentationName is the OTEL scope for this package.
	InstrumentationName = "github.com/fyrsmithlabs/companiond/internal/orchestrator"
)

// Metrics holds the orchestrator instruments.
type Metrics struct {
	messagesTotal   metric.Int64Counter
	degradedTotal   metric.Int64Counter
	milestonesTotal metric.Int64Counter
	phaseChanges    metric.Int64Counter
	anomaliesTotal  metric.Int64Counter

	duration metric.Float64Histogram

	initialized bool
}

// NewMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.messagesTotal, err = meter.Int64Counter(
		"companion.orchestrator.messages.total",
		metric.WithDescription("Messages processed, by path"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	m.degradedTotal, err = meter.Int64Counter(
		"companion.orchestrator.degraded.total",
		metric.WithDescription("DeepPath requests that fell back to FastPath, by reason"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	m.milestonesTotal, err = meter.Int64Counter(
		"companion.milestones.total",
		metric.WithDescription("Milestones emitted, by type"),
		metric.WithUnit("{milestone}"),
	)
	if err != nil {
		return nil, err
	}

	m.phaseChanges, err = meter.Int64Counter(
		"companion.behavior.phase_changes.total",
		metric.WithDescription("Behavior phase changes, by behavior and direction"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	m.anomaliesTotal, err = meter.Int64Counter(
		"companion.orchestrator.concurrency_anomalies.total",
		metric.WithDescription("Commits whose stored counters were ahead of the computed ones"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"companion.orchestrator.duration.seconds",
		metric.WithDescription("ProcessMessage latency in seconds, by path"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordMessage counts a processed message and its latency.
func (m *Metrics) RecordMessage(ctx context.Context, path Path, d time.Duration) {
	if m == nil || !m.initialized {
		return
	}
	attrs := metric.WithAttributes(attribute.String("path", string(path)))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

// RecordDegraded counts a FastPath fallback.
func (m *Metrics) RecordDegraded(ctx context.Context, reason string) {
	if m == nil || !m.initialized {
		return
	}
	m.degradedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordMilestones counts emitted milestones by type.
func (m *Metrics) RecordMilestones(ctx context.Context, ms []milestone.Milestone) {
	if m == nil || !m.initialized {
		return
	}
	for _, ev := range ms {
		m.milestonesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(ev.Type))))
	}
}

// RecordTransitions counts phase changes.
func (m *Metrics) RecordTransitions(ctx context.Context, txs []behavior.Transition) {
	if m == nil || !m.initialized {
		return
	}
	for _, tx := range txs {
		if !tx.PhaseChanged() {
			continue
		}
		dir := "up"
		if tx.AfterPhase < tx.BeforePhase {
			dir = "down"
		}
		m.phaseChanges.Add(ctx, 1, metric.WithAttributes(
			attribute.String("behavior", tx.Type.String()),
			attribute.String("direction", dir),
		))
	}
}

// RecordAnomaly counts a concurrency anomaly.
func (m *Metrics) RecordAnomaly(ctx context.Context, kind string) {
	if m == nil || !m.initialized {
		return
	}
	m.anomaliesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

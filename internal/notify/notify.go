// Package notify delivers milestone events to external subscribers.
//
// Delivery is fire-and-forget from the engine's point of view: wrap any Sink
// in Async and a slow or failing subscriber can never fail or delay message
// processing.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/milestone"
)

// Sink accepts milestone events.
type Sink interface {
	Notify(ctx context.Context, milestones []milestone.Milestone) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, milestones []milestone.Milestone) error

// Notify implements Sink.
func (f SinkFunc) Notify(ctx context.Context, ms []milestone.Milestone) error { return f(ctx, ms) }

// Log writes each milestone as a structured log line.
type Log struct {
	logger *logging.Logger
}

// NewLog returns a Sink that logs milestones at info.
func NewLog(logger *logging.Logger) *Log {
	return &Log{logger: logger.Named("milestones")}
}

// Notify implements Sink.
func (l *Log) Notify(ctx context.Context, ms []milestone.Milestone) error {
	for _, m := range ms {
		l.logger.Info(ctx, "milestone reached",
			zap.String("milestone.id", m.ID),
			zap.String("milestone.type", string(m.Type)),
			zap.Int64("threshold", m.Threshold),
			zap.Int64("old_value", m.OldValue),
			zap.Int64("new_value", m.NewValue),
			zap.String("to_tier", string(m.ToTier)),
		)
	}
	return nil
}

// Async delivers to an inner Sink on a background goroutine with a bounded
// timeout. Errors are logged, never returned.
type Async struct {
	inner   Sink
	timeout time.Duration
	logger  *logging.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewAsync wraps inner. A non-positive timeout defaults to 2s.
func NewAsync(inner Sink, timeout time.Duration, logger *logging.Logger) *Async {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Async{inner: inner, timeout: timeout, logger: logger}
}

// Notify schedules delivery and returns immediately. The caller's
// cancellation does not abort delivery; only the timeout does.
func (a *Async) Notify(ctx context.Context, ms []milestone.Milestone) error {
	if len(ms) == 0 {
		return nil
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.logger.Warn(ctx, "milestone notifier closed, dropping events", zap.Int("count", len(ms)))
		return nil
	}
	a.wg.Add(1)
	a.mu.Unlock()

	batch := append([]milestone.Milestone(nil), ms...)
	deliverCtx := context.WithoutCancel(ctx)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(deliverCtx, a.timeout)
		defer cancel()

		if err := a.inner.Notify(ctx, batch); err != nil {
			a.logger.Warn(ctx, "milestone delivery failed",
				zap.Int("count", len(batch)),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Close stops accepting events and waits for in-flight deliveries.
func (a *Async) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.wg.Wait()
	return nil
}

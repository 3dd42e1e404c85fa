package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/milestone"
)

func TestAsync(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("delivers in background", func(t *testing.T) {
		var (
			mu  sync.Mutex
			got []milestone.Milestone
		)
		inner := SinkFunc(func(ctx context.Context, ms []milestone.Milestone) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ms...)
			return nil
		})
		a := NewAsync(inner, time.Second, logging.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, a.Notify(ctx, sample()))
		cancel()
		require.NoError(t, a.Close())

		mu.Lock()
		defer mu.Unlock()
		assert.Len(t, got, 1, "caller cancellation does not abort delivery")
	})

	t.Run("failures are logged not returned", func(t *testing.T) {
		tl := logging.NewTestLogger()
		a := NewAsync(SinkFunc(func(context.Context, []milestone.Milestone) error {
			return errors.New("broker down")
		}), time.Second, tl.Logger)

		require.NoError(t, a.Notify(context.Background(), sample()))
		require.NoError(t, a.Close())
		tl.AssertLogged(t, zapcore.WarnLevel, "milestone delivery failed")
	})

	t.Run("slow sink is bounded by timeout", func(t *testing.T) {
		tl := logging.NewTestLogger()
		a := NewAsync(SinkFunc(func(ctx context.Context, _ []milestone.Milestone) error {
			<-ctx.Done()
			return ctx.Err()
		}), 200*time.Millisecond, tl.Logger)

		start := time.Now()
		require.NoError(t, a.Notify(context.Background(), sample()))
		assert.Less(t, time.Since(start), 100*time.Millisecond, "notify must not block")
		require.NoError(t, a.Close())
		tl.AssertLogged(t, zapcore.WarnLevel, "milestone delivery failed")
	})

	t.Run("empty batch and closed notifier", func(t *testing.T) {
		tl := logging.NewTestLogger()
		a := NewAsync(SinkFunc(func(context.Context, []milestone.Milestone) error {
			t.Fatal("should not deliver")
			return nil
		}), time.Second, tl.Logger)

		require.NoError(t, a.Notify(context.Background(), nil))
		require.NoError(t, a.Close())
		require.NoError(t, a.Notify(context.Background(), sample()))
		tl.AssertLogged(t, zapcore.WarnLevel, "dropping events")
	})
}

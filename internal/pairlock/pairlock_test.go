package pairlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLocker_SerializesSamePair(t *testing.T) {
	l := New()
	p := Pair{CompanionID: "c1", UserID: "u1"}

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), p)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, l.Len(), "entries are cleaned up")
}

func TestLocker_DifferentPairsIndependent(t *testing.T) {
	var l Locker
	r1, err := l.Acquire(context.Background(), Pair{"c1", "u1"})
	require.NoError(t, err)
	defer r1()

	r2, ok := l.TryAcquire(Pair{"c1", "u2"})
	require.True(t, ok)
	r2()

	_, ok = l.TryAcquire(Pair{"c1", "u1"})
	assert.False(t, ok)
}

func TestLocker_AcquireHonoursContext(t *testing.T) {
	l := New()
	p := Pair{"c1", "u1"}
	release, err := l.Acquire(context.Background(), p)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, p)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotent
	assert.Zero(t, l.Len())
}

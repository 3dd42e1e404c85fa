// Package pairlock serializes message processing per (companion, user) pair.
//
// The engine requires that messages for one pair are applied in order and
// never concurrently. Callers take the pair's token with Acquire before
// processing and release it afterwards. Different pairs never contend.
package pairlock

import (
	"context"
	"sync"
)

// Pair identifies one conversation.
type Pair struct {
	CompanionID string
	UserID      string
}

type entry struct {
	token chan struct{}
	refs  int
}

// Locker hands out per-pair tokens. The zero value is ready to use.
type Locker struct {
	mu      sync.Mutex
	entries map[Pair]*entry
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{}
}

// Acquire blocks until the pair's token is free or ctx is done. On success
// the returned release func must be called exactly once.
func (l *Locker) Acquire(ctx context.Context, p Pair) (release func(), err error) {
	e := l.ref(p)

	select {
	case e.token <- struct{}{}:
	case <-ctx.Done():
		l.unref(p, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.token
			l.unref(p, e)
		})
	}, nil
}

// TryAcquire takes the token only if it is free.
func (l *Locker) TryAcquire(p Pair) (release func(), ok bool) {
	e := l.ref(p)
	select {
	case e.token <- struct{}{}:
	default:
		l.unref(p, e)
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.token
			l.unref(p, e)
		})
	}, true
}

// Len returns how many pairs currently hold or wait for a token.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Locker) ref(p Pair) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries == nil {
		l.entries = make(map[Pair]*entry)
	}
	e, ok := l.entries[p]
	if !ok {
		e = &entry{token: make(chan struct{}, 1)}
		l.entries[p] = e
	}
	e.refs++
	return e
}

func (l *Locker) unref(p Pair, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, p)
	}
}

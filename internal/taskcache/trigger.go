package taskcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 30 * time.Second

// Trigger runs a refresh on demand. Calls closer than minGap to the start of
// the previous refresh are dropped, and concurrent calls share one refresh.
type Trigger struct {
	refresh func(context.Context) error
	minGap  time.Duration
	group   singleflight.Group
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewTrigger wraps refresh, typically (*Store).Refresh.
func NewTrigger(refresh func(context.Context) error, minGap time.Duration) *Trigger {
	return &Trigger{refresh: refresh, minGap: minGap, now: time.Now}
}

// Fire refreshes unless the guard window is still open. ran reports whether
// this call took part in a refresh.
func (t *Trigger) Fire(ctx context.Context) (ran bool, err error) {
	t.mu.Lock()
	if !t.last.IsZero() && t.now().Sub(t.last) < t.minGap {
		t.mu.Unlock()
		return false, nil
	}
	t.mu.Unlock()
	return t.do(ctx)
}

// Force refreshes regardless of the guard window. It still joins a refresh
// that is already running.
func (t *Trigger) Force(ctx context.Context) error {
	_, err := t.do(ctx)
	return err
}

// do runs the shared refresh detached from any single caller, so one caller
// giving up does not fail the others that joined it.
func (t *Trigger) do(ctx context.Context) (bool, error) {
	ch := t.group.DoChan("refresh", func() (any, error) {
		t.mu.Lock()
		t.last = t.now()
		t.mu.Unlock()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, t.refresh(rctx)
	})
	select {
	case res := <-ch:
		return true, res.Err
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

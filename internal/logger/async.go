package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes and stops a logger's background workers.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// queued carries a record together with the handler that formats it and the
// context it was logged under, so derived handlers share one worker pool.
type queued struct {
	h   slog.Handler
	ctx context.Context //nolint:containedctx // carried across the channel only
	rec slog.Record
}

// asyncState is shared by every handler derived via WithAttrs/WithGroup.
type asyncState struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan queued
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// AsyncHandler hands records to a pool of workers through a bounded buffer.
// When the buffer is full, or after Close, records below ERROR are dropped
// and counted while ERROR records are written synchronously instead.
type AsyncHandler struct {
	inner slog.Handler
	state *asyncState
}

// NewAsyncHandler creates an AsyncHandler with the given buffer size and worker count.
func NewAsyncHandler(inner slog.Handler, bufSize, workers int) *AsyncHandler {
	st := &asyncState{ch: make(chan queued, bufSize)}
	if workers < 1 {
		workers = 1
	}
	for range workers {
		st.wg.Add(1)
		go func() {
			defer st.wg.Done()
			for q := range st.ch {
				_ = q.h.Handle(q.ctx, q.rec)
			}
		}()
	}
	return &AsyncHandler{inner: inner, state: st}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record. See AsyncHandler for the overflow policy.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	// The worker may run after the request is done.
	q := queued{h: h.inner, ctx: context.WithoutCancel(ctx), rec: rec.Clone()}
	h.state.mu.RLock()
	queuedOK := false
	if !h.state.closed {
		select {
		case h.state.ch <- q:
			queuedOK = true
		default:
		}
	}
	h.state.mu.RUnlock()

	if queuedOK {
		return nil
	}
	if rec.Level >= slog.LevelError {
		return h.inner.Handle(q.ctx, q.rec)
	}
	h.state.dropped.Add(1)
	return nil
}

// WithAttrs returns a handler sharing the buffer but wrapping a derived inner handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

// WithGroup returns a handler sharing the buffer but wrapping a derived inner handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.state.dropped.Load()
}

// Close stops accepting records and waits for the workers to drain. Safe to
// call more than once.
func (h *AsyncHandler) Close() {
	h.state.mu.Lock()
	if !h.state.closed {
		h.state.closed = true
		close(h.state.ch)
	}
	h.state.mu.Unlock()
	h.state.wg.Wait()
}

package taskcache

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Strob0t/taskdeck/internal/config"
)

// Poller refreshes on an adaptive cadence: a short interval while the view
// is visible, a long one while it is hidden, each plus random jitter.
type Poller struct {
	trigger *Trigger
	visible time.Duration
	hidden  time.Duration
	jitter  time.Duration

	mu        sync.Mutex
	isVisible bool
	wake      chan struct{}
}

// NewPoller creates a Poller driving trigger. It starts visible.
func NewPoller(trigger *Trigger, cfg config.Poll) *Poller {
	return &Poller{
		trigger:   trigger,
		visible:   cfg.Visible,
		hidden:    cfg.Hidden,
		jitter:    cfg.Jitter,
		isVisible: true,
		wake:      make(chan struct{}, 1),
	}
}

// Visible reports the current visibility.
func (p *Poller) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isVisible
}

// SetVisible switches cadence. Becoming visible fires a guarded refresh so
// rapid toggling collapses into at most one refresh per guard window.
func (p *Poller) SetVisible(ctx context.Context, v bool) {
	p.mu.Lock()
	changed := p.isVisible != v
	p.isVisible = v
	p.mu.Unlock()
	if !changed {
		return
	}

	select {
	case p.wake <- struct{}{}:
	default:
	}
	if v {
		if _, err := p.trigger.Fire(ctx); err != nil {
			slog.WarnContext(ctx, "refresh on focus failed", "error", err)
		}
	}
}

// Interval returns the next wait, jitter included.
func (p *Poller) Interval() time.Duration {
	d := p.hidden
	if p.Visible() {
		d = p.visible
	}
	if p.jitter > 0 {
		d += rand.N(p.jitter)
	}
	return d
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	timer := time.NewTimer(p.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.wake:
			timer.Reset(p.Interval())
		case <-timer.C:
			if err := p.trigger.Force(ctx); err != nil && ctx.Err() == nil {
				slog.WarnContext(ctx, "background refresh failed", "error", err)
			}
			timer.Reset(p.Interval())
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/taskdeck/internal/domain/event"
	"github.com/Strob0t/taskdeck/internal/taskcache"
)

const clearScreen = "\033[H\033[2J"

func watchCmd(g *globals) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live task board",
		Long: `Show a live three-column task board.

The board refreshes on every change event from the server and on a polling
cadence as a fallback. Send SIGUSR1 to switch to the slow background cadence
and SIGUSR2 to switch back; switching back refreshes immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), g, width)
		},
	}
	cmd.Flags().IntVarP(&width, "width", "w", 32, "Column width")
	return cmd
}

func runWatch(ctx context.Context, g *globals, width int) error {
	client := g.client()
	store := taskcache.New(client)
	trigger := taskcache.NewTrigger(store.Refresh, g.cfg.Poll.MinGap)
	poller := taskcache.NewPoller(trigger, g.cfg.Poll)

	redraw := make(chan taskcache.Snapshot, 1)
	unsubscribe := store.Subscribe(func(s taskcache.Snapshot) {
		// keep only the latest snapshot
		for {
			select {
			case redraw <- s:
				return
			default:
			}
			select {
			case <-redraw:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := trigger.Force(ctx); err != nil {
		slog.Warn("initial load failed", "error", err)
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return poller.Run(gctx) })
	grp.Go(func() error {
		followEvents(gctx, g, trigger)
		return nil
	})
	grp.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGUSR1, syscall.SIGUSR2)
		defer signal.Stop(sig)
		for {
			select {
			case <-gctx.Done():
				return nil
			case s := <-sig:
				poller.SetVisible(gctx, s == syscall.SIGUSR2)
			}
		}
	})
	grp.Go(func() error {
		ticker := time.NewTicker(time.Minute) // keeps "x ago" labels current
		defer ticker.Stop()
		last := taskcache.Snapshot{Tasks: store.Tasks(), Err: store.Err()}
		for {
			fmt.Print(clearScreen + renderBoard(last, width, time.Now()) + "\n")
			select {
			case <-gctx.Done():
				return nil
			case last = <-redraw:
			case <-ticker.C:
			}
		}
	})
	return grp.Wait()
}

// followEvents refreshes on every change event, reconnecting after drops.
func followEvents(ctx context.Context, g *globals, trigger *taskcache.Trigger) {
	client := g.client()
	delay := g.cfg.Client.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	for {
		err := client.Events(ctx, func(ev event.TaskEvent) {
			slog.Debug("change event", "type", ev.Type, "task_id", ev.TaskID)
			if _, err := trigger.Fire(ctx); err != nil {
				slog.Warn("refresh after event failed", "error", err)
			}
		})
		if ctx.Err() != nil {
			return
		}
		slog.Warn("change feed disconnected", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

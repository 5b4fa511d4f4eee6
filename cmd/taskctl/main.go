// Command taskctl is a terminal client for a taskdeck server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Strob0t/taskdeck/internal/adapter/taskapi"
	"github.com/Strob0t/taskdeck/internal/config"
	"github.com/Strob0t/taskdeck/internal/logger"
)

// Version is set at build time.
var Version = "dev"

type globals struct {
	cfg    *config.Config
	server string
	json   bool
}

func (g *globals) client() *taskapi.Client {
	cc := g.cfg.Client
	if g.server != "" {
		cc.BaseURL = g.server
	}
	return taskapi.NewClientFromConfig(cc, g.cfg.Breaker)
}

func (g *globals) print(v any, text func()) error {
	if g.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func main() {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "taskctl - manage taskdeck tasks from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.Logging.Level = "warn"
			log, _ := logger.NewWithWriter(os.Stderr, cfg.Logging)
			slog.SetDefault(log)
			g.cfg = cfg
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&g.server, "server", "", "taskdeck server URL (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&g.json, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(listCmd(g))
	rootCmd.AddCommand(getCmd(g))
	rootCmd.AddCommand(createCmd(g))
	rootCmd.AddCommand(updateCmd(g))
	rootCmd.AddCommand(deleteCmd(g))
	rootCmd.AddCommand(doCmd(g))
	rootCmd.AddCommand(watchCmd(g))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

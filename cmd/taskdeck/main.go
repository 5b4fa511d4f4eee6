// Command taskdeck serves the task API, its change feed and the MCP endpoint
// over a sandboxed directory of markdown task records.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/taskdeck/internal/adapter/filestore"
	"github.com/Strob0t/taskdeck/internal/adapter/fswatch"
	cfhttp "github.com/Strob0t/taskdeck/internal/adapter/http"
	cfmcp "github.com/Strob0t/taskdeck/internal/adapter/mcp"
	cfnats "github.com/Strob0t/taskdeck/internal/adapter/nats"
	"github.com/Strob0t/taskdeck/internal/adapter/natskv"
	cfotel "github.com/Strob0t/taskdeck/internal/adapter/otel"
	"github.com/Strob0t/taskdeck/internal/adapter/ristretto"
	"github.com/Strob0t/taskdeck/internal/adapter/tiered"
	"github.com/Strob0t/taskdeck/internal/adapter/ws"
	"github.com/Strob0t/taskdeck/internal/config"
	"github.com/Strob0t/taskdeck/internal/logger"
	"github.com/Strob0t/taskdeck/internal/middleware"
	"github.com/Strob0t/taskdeck/internal/port/cache"
	"github.com/Strob0t/taskdeck/internal/port/messagequeue"
	"github.com/Strob0t/taskdeck/internal/sandbox"
	"github.com/Strob0t/taskdeck/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const idempotencyBucket = "taskdeck_idempotency"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"store_root", cfg.Store.Root,
		"nats", cfg.NATS.URL != "",
		"mcp", cfg.MCP.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOTEL, err := cfotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Storage ---

	sb, err := sandbox.New(cfg.Store.Root)
	if err != nil {
		return err
	}

	l1, err := ristretto.NewMB(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	store := filestore.New(sb, filestore.WithCache(l1))
	if err := store.EnsureDirectory(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	slog.Info("task store ready", "root", sb.Root())

	// --- Messaging (optional) ---

	var queue messagequeue.Queue
	var idemStore cache.Cache = l1
	if cfg.NATS.URL != "" {
		nq, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = nq.Drain() }()
		queue = nq

		kv, err := natskv.Open(ctx, nq.JetStream(), idempotencyBucket, cfg.Cache.IdempotencyTTL)
		if err != nil {
			slog.Warn("idempotency kv unavailable, using local cache only", "error", err)
		} else {
			idemStore = tiered.New(l1, kv, 5*time.Minute)
		}
	}

	// --- Services ---

	hub := ws.NewHub(originHosts(cfg.Server.CORSOrigin)...)
	defer hub.Close()

	taskSvc := service.NewTaskService(store, hub, queue, metrics)
	cmdSvc := service.NewCommandService(taskSvc, queue)

	if queue != nil {
		cancelCommands, err := cmdSvc.StartSubscriber(ctx)
		if err != nil {
			return fmt.Errorf("command subscriber: %w", err)
		}
		defer cancelCommands()
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Watcher.Enabled {
		dir, err := sb.TasksDirectory()
		if err != nil {
			return err
		}
		w, err := fswatch.New(dir, cfg.Watcher.Debounce, taskSvc.NotifyChanged)
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	// --- HTTP ---

	limiter := middleware.NewRateLimiterFromConfig(cfg.Rate).Exempt("/health", "/ws")
	g.Go(func() error { return limiter.RunCleanup(gctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime) })

	handlers := &cfhttp.Handlers{
		Tasks:    taskSvc,
		Commands: cmdSvc,
		Queue:    queue,
		Version:  version,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(limiter.Handler)

	// WebSocket change feed
	r.Get("/ws", hub.HandleWS)

	// MCP endpoint for agents
	if cfg.MCP.Enabled {
		mcpSrv := cfmcp.NewServer(cfmcp.ServerConfig{
			Name:    "taskdeck",
			Version: version,
			Path:    cfg.MCP.Path,
			APIKey:  cfg.MCP.APIKey,
		}, cfmcp.ServerDeps{Tasks: taskSvc, Commands: cmdSvc})
		r.Handle(cfg.MCP.Path, mcpSrv.Handler())
	}

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		cfhttp.MountRoutes(r, handlers, middleware.Idempotency(idemStore, cfg.Cache.IdempotencyTTL))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// originHosts turns the configured CORS origin into a websocket origin
// pattern. Same-origin upgrades are always accepted.
func originHosts(origin string) []string {
	if origin == "" || origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/flexiboard/internal/api"
	"github.com/starford/flexiboard/internal/boardservice"
	"github.com/starford/flexiboard/internal/mcpserver"
	"github.com/starford/flexiboard/internal/metrics"
	"github.com/starford/flexiboard/internal/scheduler"
	"github.com/starford/flexiboard/internal/sse"
	"github.com/starford/flexiboard/internal/storage"
	"github.com/starford/flexiboard/internal/store"
	"github.com/starford/flexiboard/internal/templates"
	"github.com/starford/flexiboard/internal/ws"
)

// core holds the components shared by the HTTP server and the MCP server.
type core struct {
	db       *store.DB
	registry *templates.Registry
	svc      *boardservice.Service
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// setup opens the database, loads templates and builds the board service.
// The caller closes core.db.
func setup(cfg *Config, logger *slog.Logger, extra ...boardservice.Option) (*core, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	reg, err := templates.New()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init templates: %w", err)
	}
	if cfg.Templates.Dir != "" {
		if err := os.MkdirAll(cfg.Templates.Dir, 0o755); err != nil {
			db.Close()
			return nil, fmt.Errorf("create templates dir: %w", err)
		}
		n, err := reg.LoadDir(cfg.Templates.Dir, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("templates loaded", slog.String("dir", cfg.Templates.Dir), slog.Int("count", n))
	}

	opts := []boardservice.Option{boardservice.WithLogger(logger)}
	if cfg.Attachments.Dir != "" {
		files, err := storage.NewFS(cfg.Attachments.Dir)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init attachments: %w", err)
		}
		opts = append(opts, boardservice.WithAttachments(files))
	}
	opts = append(opts, extra...)

	return &core{
		db:       db,
		registry: reg,
		svc:      boardservice.NewService(db, reg, opts...),
	}, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.Bool("automation_enabled", cfg.Automation.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	m := metrics.New()

	// SSE broker, also feeding the WebSocket transport.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := setup(cfg, logger, boardservice.WithPublisher(broker), boardservice.WithMetrics(m))
	if err != nil {
		return err
	}
	defer c.db.Close()
	m.TemplatesLoaded.Set(float64(c.registry.Len()))

	socket := ws.NewHandler(broker,
		ws.WithLogger(logger),
		ws.WithMetrics(m),
		ws.WithAllowedOrigins(cfg.CORS.AllowedOrigins))

	apiRouter := api.NewRouter(c.svc, api.RouterConfig{
		Auth: api.AuthConfig{
			Mode:      cfg.Auth.Mode,
			Token:     cfg.Auth.Token,
			JWTSecret: cfg.Auth.JWTSecret,
		},
		Events: broker,
		Socket: socket,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	// Health check and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.svc.Ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "If-Match", api.UserHeader},
		ExposedHeaders: []string{"ETag"},
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           corsHandler.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Hot-reload directory templates.
	if cfg.Templates.Dir != "" {
		g.Go(func() error {
			err := templates.Watch(gCtx, c.registry, cfg.Templates.Dir, logger, func(kind, id string) {
				m.TemplatesLoaded.Set(float64(c.registry.Len()))
				broker.Publish(sse.Event{Type: "template." + kind, Data: map[string]string{"template_id": id}})
			})
			if err != nil {
				logger.Warn("templates watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Time-based automations and deferred actions.
	if cfg.Automation.Enabled {
		sched := scheduler.New(c.svc, cfg.Automation.SweepInterval,
			scheduler.WithLogger(logger),
			scheduler.WithMetrics(m))
		g.Go(func() error {
			return sched.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close realtime streams first so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the watcher and scheduler stop
// once the HTTP server is down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	logger := newLogger(os.Stderr, app.config.App.LogLevel)
	c, err := setup(app.config, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	logger.Info("MCP server starting", slog.String("acting_user", app.mcpUser))
	return mcpserver.New(c.svc, mcpserver.WithActingUser(app.mcpUser)).ServeStdio()
}

// DataGym - interactive SQL and Python practice lab server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/datagym/internal/api"
	"github.com/ashureev/datagym/internal/config"
	"github.com/ashureev/datagym/internal/console"
	"github.com/ashureev/datagym/internal/dataset"
	"github.com/ashureev/datagym/internal/evaluator"
	"github.com/ashureev/datagym/internal/identity"
	"github.com/ashureev/datagym/internal/lab"
	"github.com/ashureev/datagym/internal/lessons"
	"github.com/ashureev/datagym/internal/logging"
	"github.com/ashureev/datagym/internal/middleware"
	"github.com/ashureev/datagym/internal/store"
	"github.com/ashureev/datagym/internal/workspace"
	"github.com/ashureev/datagym/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "query_engine", cfg.QueryEngine)

	// Initialize dependencies.
	repo, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected", "postgres", cfg.DatabaseURL != "")

	if cfg.SeedLessons {
		if err := lessons.Seed(ctx, repo); err != nil {
			return err
		}
	}

	engine, err := evaluator.NewEngine(cfg.QueryEngine)
	if err != nil {
		return err
	}
	dataset.MaxFileSize = cfg.MaxUploadBytes

	// Initialize services.
	workspaces := workspace.NewManager()
	runner := lab.NewRunner(
		evaluator.NewQueryEvaluator(engine),
		evaluator.NewScriptEvaluator(cfg.ScriptMaxSteps),
		repo,
		cfg.RunTimeout,
	)
	limiter := middleware.NewRateLimiter(cfg.RunRateLimit, cfg.RunRateWindow)
	defer limiter.Stop()
	sessionStore := identity.NewSessionStore(cfg.SessionSecret, cfg.IsDevelopment())
	sm := console.NewSessionManager()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, workspaces, runner, sessionStore, api.Options{
		QueryEngine:    engine.Name(),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := console.NewWebSocketHandler(baseHandler, runner, limiter, sm, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(sessionStore, cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	baseHandler.RegisterRoutes(r, limiter.Limit(api.DeviceKey))
	r.Get("/ws/terminal", wsHandler.ServeHTTP)
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return workspace.RunSweeper(gctx, workspaces, cfg.WorkspaceTTL, workspace.SweepInterval, sm.CloseWorkspace)
	})

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// allowedOrigins permits the configured frontend, or any origin in development.
func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}

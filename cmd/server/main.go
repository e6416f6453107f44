// Synapses - Conversational PDI Builder Server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/mindsight/synapses/internal/api"
	"github.com/mindsight/synapses/internal/assistant"
	"github.com/mindsight/synapses/internal/chat"
	"github.com/mindsight/synapses/internal/config"
	"github.com/mindsight/synapses/internal/conversation"
	"github.com/mindsight/synapses/internal/middleware"
	"github.com/mindsight/synapses/internal/profile"
	"github.com/mindsight/synapses/internal/store"
)

// janitorInterval is how often idle conversation sessions are swept.
const janitorInterval = 10 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath, cfg.WeeklyDBPath, cfg.FactTable)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath, "weekly", cfg.WeeklyDBPath != "")

	if cfg.Assistant.Endpoint() == "" {
		slog.Warn("Assistant service not configured, replies will degrade to placeholders")
	}

	// Initialize services.
	aggregator := profile.New(repo, cfg.Windows)
	gateway := assistant.NewClient(cfg.Assistant)
	sessions := conversation.NewStore()
	machine := conversation.NewMachine(sessions, conversation.DefaultScript(), aggregator, gateway)

	// Initialize handlers.
	apiHandler := api.NewHandler(machine, aggregator, repo, sessions, cfg)
	wsHandler := chat.NewWebSocketHandler(machine, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(middleware.SecurityHeaders)

	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // assistant turns can take minutes
		IdleTimeout:  120 * time.Second,
	}

	// Start session janitor.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions.StartJanitor(ctx, janitorInterval, cfg.SessionTTL)
	slog.Info("Session janitor started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coldreach/campaign-backend/internal/config"
	"github.com/coldreach/campaign-backend/internal/db"
	"github.com/coldreach/campaign-backend/internal/dispatch"
	"github.com/coldreach/campaign-backend/internal/handler"
	"github.com/coldreach/campaign-backend/internal/queue"
	"github.com/coldreach/campaign-backend/internal/repository"
	"github.com/coldreach/campaign-backend/internal/sender"
	"github.com/coldreach/campaign-backend/internal/service"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting coldreach API server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Connect to database
	database, err := db.New(cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	logger.Info("connected to database")

	// Connect to Redis queue
	queueClient, err := queue.NewRedisClient(queue.RedisConfig{
		URL:          cfg.Queue.RedisURL,
		QueueName:    cfg.Queue.QueueName,
		MaxRetries:   cfg.Queue.MaxRetries,
		RetryBackoff: cfg.Queue.RetryBackoff,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer queueClient.Close()

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(database.DB)
	emailLogRepo := repository.NewEmailLogRepository(database.DB)
	senderRepo := repository.NewSenderRepository(database.DB)

	// Email transport: real provider when configured, mock otherwise
	transport := newTransport(cfg.Sender, logger)

	// Dispatch engine for inline campaigns
	live := dispatch.NewLiveTracker()
	runner := dispatch.NewRunner(campaignRepo, emailLogRepo, transport, live, dispatch.RunnerConfig{
		SleepStep:     cfg.Dispatch.SleepStep,
		WindowRecheck: cfg.Dispatch.WindowRecheck,
	}, logger)

	// Initialize services
	campaignSvc := service.NewCampaignService(
		campaignRepo,
		emailLogRepo,
		senderRepo,
		queueClient,
		runner,
		live,
		cfg.Dispatch,
		cfg.Queue,
		logger,
	)
	senderSvc := service.NewSenderService(senderRepo, logger)

	// Initialize handlers
	campaignHandler := handler.NewCampaignHandler(campaignSvc, logger)
	senderHandler := handler.NewSenderHandler(senderSvc, logger)
	healthHandler := handler.NewHealthHandler(database.DB, queueClient, logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(handler.RecoveryMiddleware(logger))
	r.Use(handler.LoggingMiddleware(logger))
	r.Use(handler.CORSMiddleware)

	// Register routes
	r.Get("/health", healthHandler.Health)

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", campaignHandler.StartCampaign)
		r.Get("/", campaignHandler.ListCampaigns)
		r.Get("/stats", campaignHandler.GetStats)
		r.Post("/preview", campaignHandler.PreviewCampaign)
		r.Get("/{id}", campaignHandler.GetCampaign)
		r.Post("/{id}/stop", campaignHandler.StopCampaign)
		r.Get("/{id}/emails", campaignHandler.ListCampaignEmails)
	})

	r.Route("/senders", func(r chi.Router) {
		r.Post("/", senderHandler.CreateSender)
		r.Get("/", senderHandler.ListSenders)
		r.Delete("/{email}", senderHandler.DeleteSender)
	})

	// Create server
	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening",
			slog.String("addr", addr),
			slog.String("dispatch_mode", cfg.Dispatch.Mode),
		)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("server stopped gracefully")
	}
}

// newTransport picks the email transport from configuration.
func newTransport(cfg config.SenderConfig, logger *slog.Logger) sender.Sender {
	if cfg.APIURL != "" {
		logger.Info("using HTTP email transport", slog.String("url", cfg.APIURL))
		return sender.NewHTTPSender(sender.HTTPConfig{
			BaseURL: cfg.APIURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	}

	logger.Info("using mock email transport", slog.Float64("success_rate", cfg.SuccessRate))
	return sender.NewMockSender(cfg.SuccessRate)
}

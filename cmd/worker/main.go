package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coldreach/campaign-backend/internal/config"
	"github.com/coldreach/campaign-backend/internal/db"
	"github.com/coldreach/campaign-backend/internal/dispatch"
	"github.com/coldreach/campaign-backend/internal/models"
	"github.com/coldreach/campaign-backend/internal/queue"
	"github.com/coldreach/campaign-backend/internal/repository"
	"github.com/coldreach/campaign-backend/internal/sender"
	"github.com/coldreach/campaign-backend/internal/worker"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting coldreach worker")

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
	var transport sender.Sender
	if cfg.Sender.APIURL != "" {
		logger.Info("using HTTP email transport", slog.String("url", cfg.Sender.APIURL))
		transport = sender.NewHTTPSender(sender.HTTPConfig{
			BaseURL: cfg.Sender.APIURL,
			APIKey:  cfg.Sender.APIKey,
			Timeout: cfg.Sender.Timeout,
		})
	} else {
		logger.Info("using mock email transport", slog.Float64("success_rate", cfg.Sender.SuccessRate))
		transport = sender.NewMockSender(cfg.Sender.SuccessRate)
	}

	// Dispatch engine
	live := dispatch.NewLiveTracker()
	runner := dispatch.NewRunner(campaignRepo, emailLogRepo, transport, live, dispatch.RunnerConfig{
		SleepStep:     cfg.Dispatch.SleepStep,
		WindowRecheck: cfg.Dispatch.WindowRecheck,
	}, logger)

	// Initialize job processor
	processor := worker.NewProcessor(runner, senderRepo, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming jobs
	consumerErrors := make(chan error, 1)
	go func() {
		logger.Info("starting job consumer",
			slog.Int("concurrency", cfg.Worker.Concurrency),
			slog.Int("max_retries", cfg.Queue.MaxRetries),
		)

		handler := func(ctx context.Context, job *models.Job) error {
			return processor.Process(ctx, job)
		}

		consumerErrors <- queueClient.Consume(ctx, handler, cfg.Worker.Concurrency)
	}()

	// Wait for interrupt signal or consumer error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-consumerErrors:
		if err != nil && err != context.Canceled {
			logger.Error("consumer error", slog.String("error", err.Error()))
			os.Exit(1)
		}

	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))

		// Cancel context to stop consumer
		cancel()

		// Give consumer time to finish current job
		time.Sleep(5 * time.Second)

		logger.Info("worker stopped gracefully")
	}
}

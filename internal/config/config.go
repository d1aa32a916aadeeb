package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Dispatch mode constants
const (
	DispatchModeInline = "inline"
	DispatchModeQueue  = "queue"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Queue    QueueConfig
	API      APIConfig
	Worker   WorkerConfig
	Dispatch DispatchConfig
	Sender   SenderConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// QueueConfig holds queue configuration (Redis)
type QueueConfig struct {
	RedisURL     string
	QueueName    string
	MaxRetries   int
	RetryBackoff time.Duration
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port int
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	Concurrency int
}

// DispatchConfig holds the pacing and chunking knobs for the dispatch engine.
type DispatchConfig struct {
	// Mode selects where campaigns execute: "inline" runs small campaigns in
	// the API process and chunks large ones onto the queue; "queue" pushes
	// everything to the worker.
	Mode string
	// ChunkThreshold is the recipient count above which a campaign is split
	// into chunks instead of one long-lived loop.
	ChunkThreshold int
	// ChunkSize is the number of recipients per chunk job.
	ChunkSize int
	// ChunkInterval staggers consecutive chunk jobs on the queue.
	ChunkInterval time.Duration
	// SleepStep bounds how stale a stop signal can go unnoticed during an
	// inter-email delay.
	SleepStep time.Duration
	// WindowRecheck is how long the loop waits before re-checking a closed
	// sending window.
	WindowRecheck time.Duration
	// MaxConcurrentCampaigns caps running campaigns per user.
	MaxConcurrentCampaigns int
}

// SenderConfig holds email transport configuration. With no APIURL the
// process falls back to the mock transport.
type SenderConfig struct {
	APIURL      string
	APIKey      string
	Timeout     time.Duration
	SuccessRate float64 // mock transport only
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	workerConcurrency, err := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	maxRetries, err := strconv.Atoi(getEnv("JOB_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_MAX_RETRIES: %w", err)
	}

	chunkThreshold, err := strconv.Atoi(getEnv("CHUNK_THRESHOLD", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_THRESHOLD: %w", err)
	}

	chunkSize, err := strconv.Atoi(getEnv("CHUNK_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_SIZE: %w", err)
	}

	maxConcurrent, err := strconv.Atoi(getEnv("MAX_CONCURRENT_CAMPAIGNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_CAMPAIGNS: %w", err)
	}

	mode := getEnv("DISPATCH_MODE", DispatchModeInline)
	if mode != DispatchModeInline && mode != DispatchModeQueue {
		return nil, fmt.Errorf("invalid DISPATCH_MODE: %s (must be 'inline' or 'queue')", mode)
	}

	successRate, err := strconv.ParseFloat(getEnv("MOCK_SENDER_SUCCESS_RATE", "0.95"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MOCK_SENDER_SUCCESS_RATE: %w", err)
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "coldreach"),
			Password: getEnv("DB_PASSWORD", "coldreach"),
			DBName:   getEnv("DB_NAME", "coldreach"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Queue: QueueConfig{
			RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
			QueueName:    getEnv("QUEUE_NAME", "campaign_jobs"),
			MaxRetries:   maxRetries,
			RetryBackoff: 5 * time.Minute,
		},
		API: APIConfig{
			Port: apiPort,
		},
		Worker: WorkerConfig{
			Concurrency: workerConcurrency,
		},
		Dispatch: DispatchConfig{
			Mode:                   mode,
			ChunkThreshold:         chunkThreshold,
			ChunkSize:              chunkSize,
			ChunkInterval:          time.Minute,
			SleepStep:              2 * time.Second,
			WindowRecheck:          5 * time.Minute,
			MaxConcurrentCampaigns: maxConcurrent,
		},
		Sender: SenderConfig{
			APIURL:      getEnv("SENDER_API_URL", ""),
			APIKey:      getEnv("SENDER_API_KEY", ""),
			Timeout:     30 * time.Second,
			SuccessRate: successRate,
		},
	}, nil
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coldreach/campaign-backend/internal/models"
)

// redisClient implements Client using Redis: a ready list for due jobs, a
// sorted set (scored by unix time) for scheduled ones, and one key per job
// holding its serialized state.
type redisClient struct {
	client       *redis.Client
	queueName    string
	maxRetries   int
	retryBackoff time.Duration
	logger       *slog.Logger
}

// RedisConfig holds Redis queue configuration
type RedisConfig struct {
	URL          string
	QueueName    string
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewRedisClient creates a new Redis queue client
func NewRedisClient(cfg RedisConfig, logger *slog.Logger) (Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Minute
	}

	logger.Info("connected to Redis",
		slog.String("addr", opts.Addr),
		slog.String("queue", cfg.QueueName),
	)

	return &redisClient{
		client:       client,
		queueName:    cfg.QueueName,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger,
	}, nil
}

func (c *redisClient) readyKey() string     { return c.queueName + ":ready" }
func (c *redisClient) scheduledKey() string { return c.queueName + ":scheduled" }
func (c *redisClient) jobKey(id string) string {
	return c.queueName + ":job:" + id
}

// Enqueue stores the job and places its ID on the ready list, or on the
// scheduled set when ScheduledAt is in the future.
func (c *redisClient) Enqueue(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = c.maxRetries
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := c.storeJob(ctx, job); err != nil {
		return err
	}

	if job.ScheduledAt.After(now) {
		score := float64(job.ScheduledAt.UnixMilli())
		if err := c.client.ZAdd(ctx, c.scheduledKey(), redis.Z{Score: score, Member: job.ID}).Err(); err != nil {
			return fmt.Errorf("failed to schedule job: %w", err)
		}
	} else {
		if err := c.client.LPush(ctx, c.readyKey(), job.ID).Err(); err != nil {
			return fmt.Errorf("failed to push job to queue: %w", err)
		}
	}

	c.logger.Debug("job enqueued",
		slog.String("job_id", job.ID),
		slog.String("type", job.Type),
		slog.String("campaign_id", job.CampaignID),
	)

	return nil
}

// Consume promotes due scheduled jobs and processes ready ones with the
// handler, bounded by a semaphore.
func (c *redisClient) Consume(ctx context.Context, handler JobHandler, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 10 {
		concurrency = 10
	}

	c.logger.Info("starting queue consumer",
		slog.String("queue", c.queueName),
		slog.Int("concurrency", concurrency),
	)

	semaphore := make(chan struct{}, concurrency)

	drain := func() {
		for i := 0; i < concurrency; i++ {
			semaphore <- struct{}{}
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped by context, waiting for in-flight jobs")
			drain()
			return ctx.Err()

		default:
			if err := c.promoteDue(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("failed to promote scheduled jobs", slog.String("error", err.Error()))
			}

			result, err := c.client.BRPop(ctx, time.Second, c.readyKey()).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if err == context.Canceled || err == context.DeadlineExceeded {
					drain()
					return err
				}
				c.logger.Error("failed to pop from queue", slog.String("error", err.Error()))
				time.Sleep(time.Second)
				continue
			}

			if len(result) < 2 {
				c.logger.Error("unexpected BRPOP result format")
				continue
			}
			jobID := result[1]

			job, err := c.GetJob(ctx, jobID)
			if err != nil {
				c.logger.Error("failed to load job",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
				continue
			}

			semaphore <- struct{}{}
			go func(job *models.Job) {
				defer func() { <-semaphore }()
				c.runJob(ctx, handler, job)
			}(job)
		}
	}
}

// runJob executes one job and applies the retry policy on failure. Status
// writes run on a detached context: a handler interrupted by shutdown must
// still get its reschedule persisted or the job would be lost mid-drain.
func (c *redisClient) runJob(ctx context.Context, handler JobHandler, job *models.Job) {
	store := context.WithoutCancel(ctx)

	job.Status = models.JobStatusProcessing
	job.UpdatedAt = time.Now()
	if err := c.storeJob(store, job); err != nil {
		c.logger.Error("failed to mark job processing", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}

	err := handler(ctx, job)
	if err == nil {
		job.Status = models.JobStatusCompleted
		job.UpdatedAt = time.Now()
		if err := c.storeJob(store, job); err != nil {
			c.logger.Error("failed to mark job completed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
		c.logger.Info("job completed",
			slog.String("job_id", job.ID),
			slog.String("type", job.Type),
			slog.Int("retry_count", job.RetryCount),
		)
		return
	}

	c.logger.Warn("job handler failed",
		slog.String("job_id", job.ID),
		slog.String("type", job.Type),
		slog.Int("retry_count", job.RetryCount),
		slog.String("error", err.Error()),
	)

	if job.CanRetry() {
		job.RetryCount++
		job.Status = models.JobStatusPending
		job.ScheduledAt = time.Now().Add(c.retryBackoff)
		job.UpdatedAt = time.Now()
		if err := c.storeJob(ctx, job); err != nil {
			c.logger.Error("failed to store retried job", slog.String("job_id", job.ID), slog.String("error", err.Error()))
			return
		}
		score := float64(job.ScheduledAt.UnixMilli())
		if err := c.client.ZAdd(ctx, c.scheduledKey(), redis.Z{Score: score, Member: job.ID}).Err(); err != nil {
			c.logger.Error("failed to reschedule job", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
		c.logger.Info("job rescheduled for retry",
			slog.String("job_id", job.ID),
			slog.Int("retry_count", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries),
		)
		return
	}

	job.Status = models.JobStatusFailed
	job.UpdatedAt = time.Now()
	if err := c.storeJob(ctx, job); err != nil {
		c.logger.Error("failed to mark job failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
	c.logger.Error("job permanently failed",
		slog.String("job_id", job.ID),
		slog.Int("retry_count", job.RetryCount),
		slog.Int("max_retries", job.MaxRetries),
	)
}

// promoteDue moves scheduled jobs whose time has come onto the ready list.
func (c *redisClient) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	ids, err := c.client.ZRangeByScore(ctx, c.scheduledKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return err
	}

	for _, id := range ids {
		removed, err := c.client.ZRem(ctx, c.scheduledKey(), id).Result()
		if err != nil {
			return err
		}
		// Another consumer may have promoted it first.
		if removed == 0 {
			continue
		}
		if err := c.client.LPush(ctx, c.readyKey(), id).Err(); err != nil {
			return err
		}
	}

	return nil
}

// GetJob loads a job's stored state
func (c *redisClient) GetJob(ctx context.Context, id string) (*models.Job, error) {
	data, err := c.client.Get(ctx, c.jobKey(id)).Result()
	if err == redis.Nil {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("job %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (c *redisClient) storeJob(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	// Job records expire after a week so the queue does not grow unbounded.
	if err := c.client.Set(ctx, c.jobKey(job.ID), data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}

	return nil
}

// Close closes the Redis connection
func (c *redisClient) Close() error {
	c.logger.Info("closing Redis connection")
	return c.client.Close()
}

// Health checks if Redis is healthy
func (c *redisClient) Health(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

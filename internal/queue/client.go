package queue

import (
	"context"

	"github.com/coldreach/campaign-backend/internal/models"
)

// Client defines the interface for queue operations. Delivery is
// at-least-once: handlers must tolerate re-execution of the same job.
type Client interface {
	// Enqueue places a job on the queue. A future ScheduledAt defers
	// execution until that instant.
	Enqueue(ctx context.Context, job *models.Job) error

	// Consume receives due jobs and processes them with the handler.
	// concurrency controls how many jobs can be processed simultaneously.
	// Failed jobs are rescheduled with a fixed backoff until their retry
	// budget runs out, then marked permanently failed.
	Consume(ctx context.Context, handler JobHandler, concurrency int) error

	// GetJob returns the stored state of a job, for monitoring and tests.
	GetJob(ctx context.Context, id string) (*models.Job, error)

	// Close closes the queue connection
	Close() error

	// Health checks if the queue is healthy
	Health(ctx context.Context) error
}

// JobHandler is a function that processes one job
type JobHandler func(ctx context.Context, job *models.Job) error

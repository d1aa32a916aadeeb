// Package worker turns queue jobs into dispatch executions. Jobs arrive
// at-least-once; the processor relies on the email log's idempotency keys so
// a redelivered job never re-sends.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/coldreach/campaign-backend/internal/dispatch"
	"github.com/coldreach/campaign-backend/internal/models"
)

// campaignRunner is the slice of the dispatch runner the processor needs.
type campaignRunner interface {
	RunCampaign(ctx context.Context, params dispatch.CampaignParams) (dispatch.Stats, error)
	RunChunk(ctx context.Context, params dispatch.ChunkParams) (dispatch.Stats, error)
}

// senderLister loads the pool for whole-campaign jobs, which carry only the
// selection and not the pool itself.
type senderLister interface {
	List(ctx context.Context) ([]models.Sender, error)
}

// Processor routes jobs by type onto the dispatch runner.
type Processor struct {
	runner  campaignRunner
	senders senderLister
	logger  *slog.Logger
}

// NewProcessor creates a new job processor
func NewProcessor(runner campaignRunner, senders senderLister, logger *slog.Logger) *Processor {
	return &Processor{
		runner:  runner,
		senders: senders,
		logger:  logger,
	}
}

// Process handles one job. A returned error sends the job back to the queue
// for retry, so only failures that a re-run can fix should propagate.
func (p *Processor) Process(ctx context.Context, job *models.Job) error {
	p.logger.Info("processing job",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.String("campaign_id", job.CampaignID),
		slog.Int("retry_count", job.RetryCount),
	)

	switch job.Type {
	case models.JobTypeRunCampaign:
		return p.processCampaign(ctx, job)
	case models.JobTypeProcessChunk:
		return p.processChunk(ctx, job)
	default:
		// Unknown types are permanent failures; retrying cannot help.
		p.logger.Error("unknown job type, dropping",
			slog.String("job_id", job.ID),
			slog.String("job_type", job.Type),
		)
		return nil
	}
}

func (p *Processor) processCampaign(ctx context.Context, job *models.Job) error {
	var payload models.CampaignJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Error("malformed campaign job payload, dropping",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	pool, err := p.senders.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sender pool: %w", err)
	}

	_, err = p.runner.RunCampaign(ctx, dispatch.CampaignParams{
		CampaignID:      payload.CampaignID,
		CampaignName:    payload.CampaignName,
		Subject:         payload.Subject,
		Body:            payload.Body,
		Recipients:      payload.Recipients,
		Senders:         pool,
		SelectedSenders: payload.SelectedSenders,
		TimezonePolicy:  payload.TimezonePolicy,
	})
	return err
}

func (p *Processor) processChunk(ctx context.Context, job *models.Job) error {
	var payload models.ChunkJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Error("malformed chunk job payload, dropping",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	_, err := p.runner.RunChunk(ctx, dispatch.ChunkParams{
		CampaignID:      payload.CampaignID,
		ChunkIndex:      payload.ChunkIndex,
		TotalChunks:     payload.TotalChunks,
		StartIndex:      payload.StartIndex,
		Recipients:      payload.Recipients,
		Subject:         payload.Subject,
		Body:            payload.Body,
		Senders:         payload.Senders,
		SelectedSenders: payload.SelectedSenders,
		TimezonePolicy:  payload.TimezonePolicy,
	})
	return err
}

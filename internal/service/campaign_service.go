package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coldreach/campaign-backend/internal/config"
	"github.com/coldreach/campaign-backend/internal/dispatch"
	"github.com/coldreach/campaign-backend/internal/models"
	"github.com/coldreach/campaign-backend/internal/queue"
	"github.com/coldreach/campaign-backend/internal/repository"
)

// CampaignService exposes the campaign lifecycle to the transport layer.
type CampaignService interface {
	Start(ctx context.Context, req *StartCampaignRequest) (*StartCampaignResult, error)
	Stop(ctx context.Context, campaignID string) (*models.Campaign, error)
	GetStatus(ctx context.Context, campaignID string) (*models.Campaign, error)
	List(ctx context.Context, filter models.CampaignFilter) (*CampaignListResult, error)
	Stats(ctx context.Context, userID string) (*models.CampaignStats, error)
	Preview(ctx context.Context, req *PreviewRequest) (*PreviewResult, error)
	ListEmails(ctx context.Context, filter models.EmailLogFilter) (*EmailLogListResult, error)
}

// campaignService orchestrates validation, persistence and the dispatch
// decision. Small campaigns run inline in this process; large ones are
// chunked onto the queue; in queue mode everything goes to the worker.
type campaignService struct {
	campaigns repository.CampaignRepository
	logs      repository.EmailLogRepository
	senders   repository.SenderRepository
	jobs      queue.Client
	runner    *dispatch.Runner
	live      *dispatch.LiveTracker
	dispatch  config.DispatchConfig
	queueCfg  config.QueueConfig
	logger    *slog.Logger
}

// NewCampaignService creates a new campaign service
func NewCampaignService(
	campaigns repository.CampaignRepository,
	logs repository.EmailLogRepository,
	senders repository.SenderRepository,
	jobs queue.Client,
	runner *dispatch.Runner,
	live *dispatch.LiveTracker,
	dispatchCfg config.DispatchConfig,
	queueCfg config.QueueConfig,
	logger *slog.Logger,
) CampaignService {
	return &campaignService{
		campaigns: campaigns,
		logs:      logs,
		senders:   senders,
		jobs:      jobs,
		runner:    runner,
		live:      live,
		dispatch:  dispatchCfg,
		queueCfg:  queueCfg,
		logger:    logger,
	}
}

// Start validates, persists and launches a campaign. The call returns as soon
// as dispatch is underway or enqueued; it never blocks on sending.
func (s *campaignService) Start(ctx context.Context, req *StartCampaignRequest) (*StartCampaignResult, error) {
	if err := s.validateStart(req); err != nil {
		return nil, err
	}

	recipients := models.SanitizeRecipients(req.Recipients)
	dropped := len(req.Recipients) - len(recipients)
	if len(recipients) == 0 {
		return nil, models.ErrInvalidInput("no valid recipients after sanitization")
	}

	pool, err := s.senders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sender pool: %w", err)
	}
	available := models.FilterSenders(pool, req.SelectedSenders)
	if len(available) == 0 {
		return nil, models.ErrCapacityWithMsg("no senders available after filtering")
	}

	if s.dispatch.MaxConcurrentCampaigns > 0 {
		running, err := s.campaigns.CountRunningByUser(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to count running campaigns: %w", err)
		}
		if running >= s.dispatch.MaxConcurrentCampaigns {
			return nil, models.ErrCapacityWithMsg(fmt.Sprintf(
				"user %s already has %d running campaigns (limit %d)",
				req.UserID, running, s.dispatch.MaxConcurrentCampaigns,
			))
		}
	}

	campaign := &models.Campaign{
		ID:        uuid.New().String(),
		Name:      req.Name,
		UserID:    req.UserID,
		UserEmail: req.UserEmail,
		Subject:   req.Subject,
		Body:      req.Body,
		IsRunning: true,
		Total:     len(recipients),
		Status:    models.CampaignStatusRunning,
		StartTime: time.Now(),
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	result := &StartCampaignResult{
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		Status:       campaign.Status,
		Total:        campaign.Total,
		Dropped:      dropped,
	}

	switch {
	case s.dispatch.Mode == config.DispatchModeQueue:
		if err := s.enqueueCampaign(ctx, campaign, recipients, req); err != nil {
			s.abortDispatch(ctx, campaign.ID, err)
			return nil, err
		}
		result.DispatchPath = DispatchPathQueued

	case len(recipients) > s.dispatch.ChunkThreshold:
		chunks, err := s.enqueueChunks(ctx, campaign, recipients, available, req)
		if err != nil {
			s.abortDispatch(ctx, campaign.ID, err)
			return nil, err
		}
		result.DispatchPath = DispatchPathChunked
		result.Chunks = chunks

	default:
		s.runInline(campaign, recipients, available, req)
		result.DispatchPath = DispatchPathInline
	}

	s.logger.Info("campaign accepted",
		slog.String("campaign_id", campaign.ID),
		slog.String("campaign_name", campaign.Name),
		slog.String("user_id", campaign.UserID),
		slog.Int("total", campaign.Total),
		slog.Int("dropped", dropped),
		slog.String("dispatch_path", result.DispatchPath),
	)

	return result, nil
}

func (s *campaignService) validateStart(req *StartCampaignRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return models.ErrInvalidInput("campaign_name is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return models.ErrInvalidInput("user_id is required")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return models.ErrInvalidInput("subject is required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return models.ErrInvalidInput("body is required")
	}
	if len(req.Recipients) == 0 {
		return models.ErrInvalidInput("recipients are required")
	}
	if err := dispatch.ValidateTemplate(req.Subject); err != nil {
		return models.ErrInvalidInput(fmt.Sprintf("invalid subject template: %v", err))
	}
	if err := dispatch.ValidateTemplate(req.Body); err != nil {
		return models.ErrInvalidInput(fmt.Sprintf("invalid body template: %v", err))
	}
	if req.TimezonePolicy != nil {
		if err := req.TimezonePolicy.Validate(); err != nil {
			return models.ErrInvalidInput(fmt.Sprintf("invalid timezone policy: %v", err))
		}
	}
	return nil
}

// enqueueCampaign pushes the whole campaign to the worker as one job.
func (s *campaignService) enqueueCampaign(ctx context.Context, campaign *models.Campaign, recipients []models.Recipient, req *StartCampaignRequest) error {
	payload, err := json.Marshal(models.CampaignJobPayload{
		CampaignID:      campaign.ID,
		CampaignName:    campaign.Name,
		Subject:         campaign.Subject,
		Body:            campaign.Body,
		Recipients:      recipients,
		SelectedSenders: req.SelectedSenders,
		TimezonePolicy:  req.TimezonePolicy,
		UserID:          campaign.UserID,
		UserEmail:       campaign.UserEmail,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal campaign job: %w", err)
	}

	job := &models.Job{
		CampaignID: campaign.ID,
		Type:       models.JobTypeRunCampaign,
		Payload:    payload,
		MaxRetries: s.queueCfg.MaxRetries,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue campaign: %w", err)
	}
	return nil
}

// enqueueChunks splits the recipient list into fixed-size chunk jobs,
// staggered on the queue so chunks do not all fire at once. The sender pool
// rides inside each payload so the worker does not re-read it mid-campaign.
func (s *campaignService) enqueueChunks(ctx context.Context, campaign *models.Campaign, recipients []models.Recipient, available []models.Sender, req *StartCampaignRequest) (int, error) {
	size := s.dispatch.ChunkSize
	if size <= 0 {
		size = 10
	}
	total := (len(recipients) + size - 1) / size

	for i := 0; i < total; i++ {
		start := i * size
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}

		payload, err := json.Marshal(models.ChunkJobPayload{
			CampaignID:      campaign.ID,
			ChunkIndex:      i,
			TotalChunks:     total,
			StartIndex:      start,
			Recipients:      recipients[start:end],
			Subject:         campaign.Subject,
			Body:            campaign.Body,
			Senders:         available,
			SelectedSenders: req.SelectedSenders,
			TimezonePolicy:  req.TimezonePolicy,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to marshal chunk job: %w", err)
		}

		job := &models.Job{
			CampaignID:  campaign.ID,
			Type:        models.JobTypeProcessChunk,
			ScheduledAt: time.Now().Add(time.Duration(i) * s.dispatch.ChunkInterval),
			Payload:     payload,
			MaxRetries:  s.queueCfg.MaxRetries,
		}
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			return 0, fmt.Errorf("failed to enqueue chunk %d/%d: %w", i+1, total, err)
		}
	}

	return total, nil
}

// abortDispatch stops a campaign whose jobs could not all be enqueued. Any
// chunk already scheduled sees the stopped status and abandons itself, so the
// caller's error is not contradicted by a partial dispatch.
func (s *campaignService) abortDispatch(ctx context.Context, campaignID string, cause error) {
	s.logger.Error("enqueue failed, stopping campaign",
		slog.String("campaign_id", campaignID),
		slog.String("error", cause.Error()),
	)
	if err := s.campaigns.Stop(ctx, campaignID); err != nil {
		s.logger.Error("failed to stop campaign after enqueue failure",
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.live.Finish(campaignID, models.CampaignStatusStopped)
}

// runInline launches the dispatch loop in this process. The loop is detached
// from the request context: the campaign outlives the HTTP call and is
// stopped through its durable status, not through context cancellation.
func (s *campaignService) runInline(campaign *models.Campaign, recipients []models.Recipient, available []models.Sender, req *StartCampaignRequest) {
	params := dispatch.CampaignParams{
		CampaignID:      campaign.ID,
		CampaignName:    campaign.Name,
		Subject:         campaign.Subject,
		Body:            campaign.Body,
		Recipients:      recipients,
		Senders:         available,
		SelectedSenders: req.SelectedSenders,
		TimezonePolicy:  req.TimezonePolicy,
	}

	go func() {
		if _, err := s.runner.RunCampaign(context.Background(), params); err != nil {
			s.logger.Error("inline campaign dispatch failed",
				slog.String("campaign_id", campaign.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Stop marks the campaign stopped in durable storage. Any live dispatch loop
// observes the new status within one sleep step and terminates.
func (s *campaignService) Stop(ctx context.Context, campaignID string) (*models.Campaign, error) {
	if err := s.campaigns.Stop(ctx, campaignID); err != nil {
		return nil, err
	}

	s.live.Finish(campaignID, models.CampaignStatusStopped)

	s.logger.Info("campaign stopped",
		slog.String("campaign_id", campaignID),
	)

	return s.campaigns.GetByID(ctx, campaignID)
}

// GetStatus returns the durable record overlaid with any fresher live
// counters. The durable status always wins on conflict.
func (s *campaignService) GetStatus(ctx context.Context, campaignID string) (*models.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return s.live.Merge(campaign), nil
}

// List returns a filtered, paginated page of campaigns with live counters
// merged in.
func (s *campaignService) List(ctx context.Context, filter models.CampaignFilter) (*CampaignListResult, error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	campaigns, total, err := s.campaigns.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	for i, c := range campaigns {
		campaigns[i] = s.live.Merge(c)
	}

	return &CampaignListResult{
		Campaigns:  campaigns,
		Pagination: models.NewPaginationResult(filter.Page, filter.PageSize, total),
	}, nil
}

// Stats aggregates campaign counters for one user
func (s *campaignService) Stats(ctx context.Context, userID string) (*models.CampaignStats, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.ErrInvalidInput("user_id is required")
	}
	return s.campaigns.StatsByUser(ctx, userID)
}

// Preview dry-runs sanitization, distribution planning and personalization
// without creating any state or sending anything.
func (s *campaignService) Preview(ctx context.Context, req *PreviewRequest) (*PreviewResult, error) {
	if err := dispatch.ValidateTemplate(req.Subject); err != nil {
		return nil, models.ErrInvalidInput(fmt.Sprintf("invalid subject template: %v", err))
	}
	if err := dispatch.ValidateTemplate(req.Body); err != nil {
		return nil, models.ErrInvalidInput(fmt.Sprintf("invalid body template: %v", err))
	}

	recipients := models.SanitizeRecipients(req.Recipients)

	pool, err := s.senders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sender pool: %w", err)
	}
	available := models.FilterSenders(pool, req.SelectedSenders)
	if len(available) == 0 {
		return nil, models.ErrCapacityWithMsg("no senders available after filtering")
	}

	result := &PreviewResult{
		Total:   len(recipients),
		Dropped: len(req.Recipients) - len(recipients),
		Plan:    dispatch.BuildPlan(available, len(recipients)),
	}

	if len(recipients) > 0 {
		result.SampleSubject = dispatch.Personalize(req.Subject, recipients[0], available[0])
		result.SampleBody = dispatch.Personalize(req.Body, recipients[0], available[0])
	}

	return result, nil
}

// ListEmails returns the send-attempt log for one campaign.
func (s *campaignService) ListEmails(ctx context.Context, filter models.EmailLogFilter) (*EmailLogListResult, error) {
	if filter.CampaignID == "" {
		return nil, models.ErrInvalidInput("campaign_id is required")
	}

	// Listing logs for an unknown campaign is a 404, not an empty page.
	if _, err := s.campaigns.GetByID(ctx, filter.CampaignID); err != nil {
		return nil, err
	}

	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	logs, total, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &EmailLogListResult{
		Logs:       logs,
		Pagination: models.NewPaginationResult(filter.Page, filter.PageSize, total),
	}, nil
}

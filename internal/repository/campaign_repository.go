package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coldreach/campaign-backend/internal/models"
)

// CampaignRepository is the durable campaign instance store. All writes
// refresh updated_at; the stored status is authoritative over any cached
// copy. The store does not enforce mutual exclusion: callers must keep at
// most one active dispatcher per campaign.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error)
	IncrementCounters(ctx context.Context, id string, sent, successful, failed int) error
	SetNextEmail(ctx context.Context, id string, nextEmailIn *int, lastDelayMs *int64) error
	Complete(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	CountRunningByUser(ctx context.Context, userID string) (int, error)
	StatsByUser(ctx context.Context, userID string) (*models.CampaignStats, error)
}

// campaignRepository implements CampaignRepository using PostgreSQL
type campaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *sql.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

const campaignColumns = `id, name, user_id, user_email, subject, body, is_running,
	sent, successful, failed, total, completed, status, start_time,
	next_email_in, last_delay_ms, end_time, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*models.Campaign, error) {
	c := &models.Campaign{}
	err := row.Scan(
		&c.ID, &c.Name, &c.UserID, &c.UserEmail, &c.Subject, &c.Body, &c.IsRunning,
		&c.Sent, &c.Successful, &c.Failed, &c.Total, &c.Completed, &c.Status, &c.StartTime,
		&c.NextEmailIn, &c.LastDelayMs, &c.EndTime, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new campaign instance
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	query := `
		INSERT INTO campaigns (id, name, user_id, user_email, subject, body,
			is_running, total, status, start_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		campaign.ID,
		campaign.Name,
		campaign.UserID,
		campaign.UserEmail,
		campaign.Subject,
		campaign.Body,
		campaign.IsRunning,
		campaign.Total,
		campaign.Status,
		campaign.StartTime,
	).Scan(&campaign.CreatedAt, &campaign.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	campaign, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("campaign %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return campaign, nil
}

// List retrieves campaigns with pagination and filtering
func (r *campaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argPos)
		countQuery += fmt.Sprintf(" AND user_id = $%d", argPos)
		args = append(args, filter.UserID)
		argPos++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		countQuery += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	offset := models.CalculateOffset(filter.Page, filter.PageSize)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, totalCount, nil
}

// IncrementCounters advances the durable counters after a send attempt.
// Deltas rather than absolutes so chunk executions on the same campaign
// compose.
func (r *campaignRepository) IncrementCounters(ctx context.Context, id string, sent, successful, failed int) error {
	query := `
		UPDATE campaigns
		SET sent = sent + $1, successful = successful + $2, failed = failed + $3, updated_at = NOW()
		WHERE id = $4`

	return r.exec(ctx, id, query, sent, successful, failed, id)
}

// SetNextEmail records the countdown to the next send for observability.
// Pass nils to clear it once the delay has elapsed.
func (r *campaignRepository) SetNextEmail(ctx context.Context, id string, nextEmailIn *int, lastDelayMs *int64) error {
	query := `
		UPDATE campaigns
		SET next_email_in = $1, last_delay_ms = COALESCE($2, last_delay_ms), updated_at = NOW()
		WHERE id = $3`

	return r.exec(ctx, id, query, nextEmailIn, lastDelayMs, id)
}

// Complete marks a campaign completed unless it was explicitly stopped.
// Completion never overwrites a stop.
func (r *campaignRepository) Complete(ctx context.Context, id string) error {
	query := `
		UPDATE campaigns
		SET is_running = FALSE, completed = TRUE, status = $1,
		    end_time = NOW(), next_email_in = NULL, updated_at = NOW()
		WHERE id = $2 AND status <> $3`

	result, err := r.db.ExecContext(ctx, query, models.CampaignStatusCompleted, id, models.CampaignStatusStopped)
	if err != nil {
		return fmt.Errorf("failed to complete campaign: %w", err)
	}

	// Zero rows affected is fine here: the campaign was stopped first.
	_, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	return nil
}

// Stop marks a campaign stopped. Stopping an already-completed campaign is a
// conflict.
func (r *campaignRepository) Stop(ctx context.Context, id string) error {
	query := `
		UPDATE campaigns
		SET is_running = FALSE, status = $1, end_time = NOW(),
		    next_email_in = NULL, updated_at = NOW()
		WHERE id = $2 AND status <> $3`

	result, err := r.db.ExecContext(ctx, query, models.CampaignStatusStopped, id, models.CampaignStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to stop campaign: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either missing or already completed; disambiguate for the caller.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return models.ErrConflictWithMsg(fmt.Sprintf("campaign %s already completed", id))
	}

	return nil
}

// CountRunningByUser returns how many campaigns a user currently has running
func (r *campaignRepository) CountRunningByUser(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM campaigns WHERE user_id = $1 AND is_running`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count running campaigns: %w", err)
	}

	return count, nil
}

// StatsByUser aggregates campaign counters for one user
func (r *campaignRepository) StatsByUser(ctx context.Context, userID string) (*models.CampaignStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = $1),
		       COUNT(*) FILTER (WHERE status = $2),
		       COALESCE(SUM(total), 0),
		       COALESCE(SUM(sent), 0),
		       COALESCE(SUM(successful), 0),
		       COALESCE(SUM(failed), 0)
		FROM campaigns WHERE user_id = $3`

	stats := &models.CampaignStats{}
	err := r.db.QueryRowContext(ctx, query, models.CampaignStatusRunning, models.CampaignStatusCompleted, userID).Scan(
		&stats.TotalCampaigns,
		&stats.RunningCampaigns,
		&stats.CompletedCampaigns,
		&stats.TotalEmails,
		&stats.TotalSent,
		&stats.TotalSuccessful,
		&stats.TotalFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaign stats: %w", err)
	}

	return stats, nil
}

func (r *campaignRepository) exec(ctx context.Context, id, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("campaign %s not found", id))
	}

	return nil
}

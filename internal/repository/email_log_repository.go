package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coldreach/campaign-backend/internal/models"
)

// EmailLogRepository is the append-only per-attempt delivery log. Exists is
// the idempotency check used by chunk re-runs: an at-least-once redelivered
// chunk skips recipients that already have a log entry.
type EmailLogRepository interface {
	Append(ctx context.Context, log *models.EmailLog) error
	Exists(ctx context.Context, campaignID string, recipientIndex int) (bool, error)
	List(ctx context.Context, filter models.EmailLogFilter) ([]*models.EmailLog, int64, error)
}

// emailLogRepository implements EmailLogRepository using PostgreSQL
type emailLogRepository struct {
	db *sql.DB
}

// NewEmailLogRepository creates a new email log repository
func NewEmailLogRepository(db *sql.DB) EmailLogRepository {
	return &emailLogRepository{db: db}
}

// Append inserts one send-attempt record
func (r *emailLogRepository) Append(ctx context.Context, log *models.EmailLog) error {
	query := `
		INSERT INTO email_logs (campaign_id, recipient_index, email, name, status, sender, error, message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (campaign_id, recipient_index) DO NOTHING
		RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		log.CampaignID,
		log.RecipientIndex,
		log.Email,
		log.Name,
		log.Status,
		log.Sender,
		log.Error,
		log.MessageID,
	).Scan(&log.ID, &log.Timestamp)

	// A conflict means the attempt was already recorded by an earlier
	// delivery of the same chunk; treat it as a no-op.
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to append email log: %w", err)
	}

	return nil
}

// Exists reports whether a send attempt was already recorded for the
// recipient index
func (r *emailLogRepository) Exists(ctx context.Context, campaignID string, recipientIndex int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM email_logs WHERE campaign_id = $1 AND recipient_index = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, campaignID, recipientIndex).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email log: %w", err)
	}

	return exists, nil
}

// List retrieves email logs with pagination and filtering
func (r *emailLogRepository) List(ctx context.Context, filter models.EmailLogFilter) ([]*models.EmailLog, int64, error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	query := `
		SELECT id, campaign_id, recipient_index, email, name, status, sender, error, message_id, created_at
		FROM email_logs
		WHERE campaign_id = $1`
	countQuery := `SELECT COUNT(*) FROM email_logs WHERE campaign_id = $1`
	args := []interface{}{filter.CampaignID}
	argPos := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		countQuery += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count email logs: %w", err)
	}

	offset := models.CalculateOffset(filter.Page, filter.PageSize)
	query += fmt.Sprintf(" ORDER BY recipient_index ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list email logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.EmailLog{}
	for rows.Next() {
		log := &models.EmailLog{}
		err := rows.Scan(
			&log.ID,
			&log.CampaignID,
			&log.RecipientIndex,
			&log.Email,
			&log.Name,
			&log.Status,
			&log.Sender,
			&log.Error,
			&log.MessageID,
			&log.Timestamp,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan email log: %w", err)
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating email logs: %w", err)
	}

	return logs, totalCount, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coldreach/campaign-backend/internal/models"
)

// SenderRepository manages the verified sender pool
type SenderRepository interface {
	Create(ctx context.Context, sender *models.Sender) error
	List(ctx context.Context) ([]models.Sender, error)
	Delete(ctx context.Context, email string) error
}

// senderRepository implements SenderRepository using PostgreSQL
type senderRepository struct {
	db *sql.DB
}

// NewSenderRepository creates a new sender repository
func NewSenderRepository(db *sql.DB) SenderRepository {
	return &senderRepository{db: db}
}

// Create inserts a new sender
func (r *senderRepository) Create(ctx context.Context, sender *models.Sender) error {
	query := `
		INSERT INTO senders (email, display_name)
		VALUES ($1, $2)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query, sender.Email, sender.DisplayName).Scan(&sender.ID)
	if err != nil {
		return fmt.Errorf("failed to create sender: %w", err)
	}

	return nil
}

// List returns the whole sender pool ordered by address
func (r *senderRepository) List(ctx context.Context) ([]models.Sender, error) {
	query := `SELECT id, email, display_name FROM senders ORDER BY email`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list senders: %w", err)
	}
	defer rows.Close()

	senders := []models.Sender{}
	for rows.Next() {
		var s models.Sender
		if err := rows.Scan(&s.ID, &s.Email, &s.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan sender: %w", err)
		}
		senders = append(senders, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating senders: %w", err)
	}

	return senders, nil
}

// Delete removes a sender from the pool
func (r *senderRepository) Delete(ctx context.Context, email string) error {
	query := `DELETE FROM senders WHERE email = $1`

	result, err := r.db.ExecContext(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to delete sender: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("sender %s not found", email))
	}

	return nil
}

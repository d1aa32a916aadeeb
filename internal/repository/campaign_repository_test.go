package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/coldreach/campaign-backend/internal/models"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func campaignRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "user_id", "user_email", "subject", "body", "is_running",
		"sent", "successful", "failed", "total", "completed", "status", "start_time",
		"next_email_in", "last_delay_ms", "end_time", "created_at", "updated_at",
	}).AddRow(
		"c1", "launch", "u1", "u@x.com", "subj", "body", true,
		3, 2, 1, 10, false, models.CampaignStatusRunning, now,
		nil, nil, nil, now, now,
	)
}

func TestCampaignGetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id =").
		WithArgs("c1").
		WillReturnRows(campaignRows())

	campaign, err := repo.GetByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if campaign.ID != "c1" || campaign.Sent != 3 || campaign.Status != models.CampaignStatusRunning {
		t.Errorf("unexpected campaign: %+v", campaign)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCampaignGetByIDNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id =").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCampaignIncrementCountersUsesDeltas(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectExec(`UPDATE campaigns\s+SET sent = sent \+`).
		WithArgs(1, 1, 0, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.IncrementCounters(context.Background(), "c1", 1, 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCampaignIncrementCountersNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectExec(`UPDATE campaigns\s+SET sent = sent \+`).
		WithArgs(1, 0, 1, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementCounters(context.Background(), "missing", 1, 0, 1)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCampaignCompleteSkipsStoppedRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	// Zero rows affected: the row was stopped first. Complete must treat this
	// as a no-op, not an error.
	mock.ExpectExec(`UPDATE campaigns\s+SET is_running = FALSE, completed = TRUE`).
		WithArgs(models.CampaignStatusCompleted, "c1", models.CampaignStatusStopped).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Complete(context.Background(), "c1"); err != nil {
		t.Fatalf("completing a stopped campaign must be a no-op, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCampaignStop(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectExec(`UPDATE campaigns\s+SET is_running = FALSE, status =`).
		WithArgs(models.CampaignStatusStopped, "c1", models.CampaignStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Stop(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCampaignStopAlreadyCompleted(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectExec(`UPDATE campaigns\s+SET is_running = FALSE, status =`).
		WithArgs(models.CampaignStatusStopped, "c1", models.CampaignStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Disambiguation read: the row exists, so it must be completed.
	rows := campaignRows()
	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id =").
		WithArgs("c1").
		WillReturnRows(rows)

	err := repo.Stop(context.Background(), "c1")
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestCampaignStopNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectExec(`UPDATE campaigns\s+SET is_running = FALSE, status =`).
		WithArgs(models.CampaignStatusStopped, "missing", models.CampaignStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id =").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	err := repo.Stop(context.Background(), "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCampaignCountRunningByUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns WHERE user_id =`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountRunningByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4, got %d", count)
	}
}

func TestCampaignStatsByUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\),`).
		WithArgs(models.CampaignStatusRunning, models.CampaignStatusCompleted, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "running", "completed", "emails", "sent", "successful", "failed"}).
			AddRow(3, 1, 2, 500, 450, 440, 10))

	stats, err := repo.StatsByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalCampaigns != 3 || stats.TotalSent != 450 || stats.TotalFailed != 10 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

package models

import "time"

// Campaign status constants
const (
	CampaignStatusRunning   = "running"
	CampaignStatusStopped   = "stopped"
	CampaignStatusCompleted = "completed"
)

// Campaign is the durable record of one campaign run. The row in Postgres is
// the authoritative source of truth for status and counters; any in-memory
// copy is a fast-path cache that must be reconciled against it before every
// send decision.
type Campaign struct {
	ID          string     `json:"campaign_id"`
	Name        string     `json:"campaign_name"`
	UserID      string     `json:"user_id"`
	UserEmail   string     `json:"user_email"`
	Subject     string     `json:"subject"`
	Body        string     `json:"-"`
	IsRunning   bool       `json:"is_running"`
	Sent        int        `json:"sent"`
	Successful  int        `json:"successful"`
	Failed      int        `json:"failed"`
	Total       int        `json:"total"`
	Completed   bool       `json:"completed"`
	Status      string     `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	NextEmailIn *int       `json:"next_email_in,omitempty"` // seconds until next send
	LastDelayMs *int64     `json:"last_delay,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CampaignFilter holds filtering options for listing campaigns
type CampaignFilter struct {
	UserID   string
	Status   string
	Page     int
	PageSize int
}

// IsValidCampaignStatus checks if the campaign status is valid
func IsValidCampaignStatus(status string) bool {
	switch status {
	case CampaignStatusRunning, CampaignStatusStopped, CampaignStatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status can no longer change. A stopped
// campaign stays stopped: completion must never overwrite an explicit stop.
func IsTerminal(status string) bool {
	return status == CampaignStatusStopped || status == CampaignStatusCompleted
}

// CampaignStats aggregates counters across campaigns for a user.
type CampaignStats struct {
	TotalCampaigns     int `json:"total_campaigns"`
	RunningCampaigns   int `json:"running_campaigns"`
	CompletedCampaigns int `json:"completed_campaigns"`
	TotalEmails        int `json:"total_emails"`
	TotalSent          int `json:"total_sent"`
	TotalSuccessful    int `json:"total_successful"`
	TotalFailed        int `json:"total_failed"`
}

package models

import "time"

// Email log status constants
const (
	EmailStatusSuccess = "success"
	EmailStatusFailed  = "failed"
)

// EmailLog is one append-only record per send attempt.
type EmailLog struct {
	ID             int64     `json:"id"`
	CampaignID     string    `json:"campaign_id"`
	RecipientIndex int       `json:"recipient_index"`
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	Status         string    `json:"status"`
	Sender         string    `json:"sender"`
	Error          *string   `json:"error,omitempty"`
	MessageID      *string   `json:"message_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// EmailLogFilter holds filtering options for listing email logs
type EmailLogFilter struct {
	CampaignID string
	Status     string
	Page       int
	PageSize   int
}

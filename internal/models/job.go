package models

import (
	"encoding/json"
	"time"
)

// Job status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job type constants
const (
	JobTypeRunCampaign  = "run_campaign"
	JobTypeProcessChunk = "process_chunk"
)

// Job is one unit of dispatch work on the queue. Delivery is at-least-once:
// a redelivered job must be safe to re-run for the same campaign/chunk.
type Job struct {
	ID          string          `json:"id"`
	CampaignID  string          `json:"campaign_id"`
	Type        string          `json:"type"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CanRetry checks if a failed job still has retry budget
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// CampaignJobPayload carries a whole campaign through the queue for
// out-of-process execution by the worker.
type CampaignJobPayload struct {
	CampaignID      string          `json:"campaign_id"`
	CampaignName    string          `json:"campaign_name"`
	Subject         string          `json:"subject"`
	Body            string          `json:"body"`
	Recipients      []Recipient     `json:"recipients"`
	SelectedSenders []string        `json:"selected_senders,omitempty"`
	TimezonePolicy  *TimezonePolicy `json:"timezone_policy,omitempty"`
	UserID          string          `json:"user_id"`
	UserEmail       string          `json:"user_email"`
}

// ChunkJobPayload carries one bounded slice of a large campaign. Each chunk
// re-derives sender assignment by round-robin from StartIndex.
type ChunkJobPayload struct {
	CampaignID      string          `json:"campaign_id"`
	ChunkIndex      int             `json:"chunk_index"`
	TotalChunks     int             `json:"total_chunks"`
	StartIndex      int             `json:"start_index"`
	Recipients      []Recipient     `json:"recipients"`
	Subject         string          `json:"subject"`
	Body            string          `json:"body"`
	Senders         []Sender        `json:"senders"`
	SelectedSenders []string        `json:"selected_senders,omitempty"`
	TimezonePolicy  *TimezonePolicy `json:"timezone_policy,omitempty"`
}

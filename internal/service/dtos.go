package service

import (
	"github.com/coldreach/campaign-backend/internal/dispatch"
	"github.com/coldreach/campaign-backend/internal/models"
)

// Dispatch path labels reported back to the caller on start.
const (
	DispatchPathInline  = "inline"
	DispatchPathQueued  = "queued"
	DispatchPathChunked = "chunked"
)

// StartCampaignRequest is the payload to launch a campaign.
type StartCampaignRequest struct {
	Name            string                 `json:"campaign_name"`
	UserID          string                 `json:"user_id"`
	UserEmail       string                 `json:"user_email"`
	Subject         string                 `json:"subject"`
	Body            string                 `json:"body"`
	Recipients      []models.Recipient     `json:"recipients"`
	SelectedSenders []string               `json:"selected_senders,omitempty"`
	TimezonePolicy  *models.TimezonePolicy `json:"timezone_policy,omitempty"`
}

// StartCampaignResult acknowledges an accepted campaign. Total counts the
// recipients that survived sanitization; Dropped counts the ones that did
// not.
type StartCampaignResult struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Status       string `json:"status"`
	Total        int    `json:"total"`
	Dropped      int    `json:"dropped,omitempty"`
	DispatchPath string `json:"dispatch_path"`
	Chunks       int    `json:"chunks,omitempty"`
}

// PreviewRequest asks for a dry-run view of a campaign without sending
// anything or creating any state.
type PreviewRequest struct {
	Subject         string             `json:"subject"`
	Body            string             `json:"body"`
	Recipients      []models.Recipient `json:"recipients"`
	SelectedSenders []string           `json:"selected_senders,omitempty"`
}

// PreviewResult shows the sanitized recipient count, the fair-share
// distribution plan and a sample personalization for the first recipient.
type PreviewResult struct {
	Total         int                  `json:"total"`
	Dropped       int                  `json:"dropped,omitempty"`
	Plan          []dispatch.PlanEntry `json:"distribution_plan"`
	SampleSubject string               `json:"sample_subject,omitempty"`
	SampleBody    string               `json:"sample_body,omitempty"`
}

// CampaignListResult is a paginated page of campaigns.
type CampaignListResult struct {
	Campaigns  []*models.Campaign      `json:"campaigns"`
	Pagination models.PaginationResult `json:"pagination"`
}

// EmailLogListResult is a paginated page of send-attempt records.
type EmailLogListResult struct {
	Logs       []*models.EmailLog      `json:"logs"`
	Pagination models.PaginationResult `json:"pagination"`
}

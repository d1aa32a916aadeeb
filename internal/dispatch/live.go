package dispatch

import (
	"sync"
	"time"

	"github.com/coldreach/campaign-backend/internal/models"
)

// LiveTracker is an in-process mirror of campaign counters, used as a
// fast-path for status reads. It is never authoritative: durable storage
// wins on conflict, and status readers must prefer a durable stopped or
// completed over anything held here.
type LiveTracker struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
}

// NewLiveTracker creates an empty tracker
func NewLiveTracker() *LiveTracker {
	return &LiveTracker{
		campaigns: make(map[string]*models.Campaign),
	}
}

// Track registers a campaign the moment its dispatcher starts.
func (t *LiveTracker) Track(campaign *models.Campaign) {
	t.mu.Lock()
	defer t.mu.Unlock()
	copied := *campaign
	t.campaigns[campaign.ID] = &copied
}

// IncrementCounters mirrors a send attempt, delta-style like the durable
// store.
func (t *LiveTracker) IncrementCounters(campaignID string, sent, successful, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.campaigns[campaignID]; ok {
		c.Sent += sent
		c.Successful += successful
		c.Failed += failed
		c.UpdatedAt = time.Now()
	}
}

// SetNextEmail mirrors the countdown to the next send.
func (t *LiveTracker) SetNextEmail(campaignID string, nextEmailIn *int, lastDelayMs *int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.campaigns[campaignID]; ok {
		c.NextEmailIn = nextEmailIn
		if lastDelayMs != nil {
			c.LastDelayMs = lastDelayMs
		}
	}
}

// Finish records the terminal status and drops the running flag.
func (t *LiveTracker) Finish(campaignID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.campaigns[campaignID]; ok {
		c.IsRunning = false
		c.Status = status
		c.Completed = status == models.CampaignStatusCompleted
		c.NextEmailIn = nil
		now := time.Now()
		c.EndTime = &now
		c.UpdatedAt = now
	}
}

// Get returns a copy of the live view, if any.
func (t *LiveTracker) Get(campaignID string) (*models.Campaign, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.campaigns[campaignID]
	if !ok {
		return nil, false
	}
	copied := *c
	return &copied, true
}

// Remove drops a finished campaign from the fast path.
func (t *LiveTracker) Remove(campaignID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.campaigns, campaignID)
}

// Merge overlays live counters onto a durable record. The durable status is
// authoritative: a durable stopped or completed is kept no matter what the
// live copy says; otherwise the fresher counters win.
func (t *LiveTracker) Merge(durable *models.Campaign) *models.Campaign {
	live, ok := t.Get(durable.ID)
	if !ok {
		return durable
	}

	merged := *durable
	if !models.IsTerminal(durable.Status) {
		merged.Status = live.Status
		merged.IsRunning = live.IsRunning
		merged.Completed = live.Completed
	}
	if live.Sent > merged.Sent {
		merged.Sent = live.Sent
		merged.Successful = live.Successful
		merged.Failed = live.Failed
	}
	merged.NextEmailIn = live.NextEmailIn
	if live.LastDelayMs != nil {
		merged.LastDelayMs = live.LastDelayMs
	}
	return &merged
}

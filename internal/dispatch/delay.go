package dispatch

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/coldreach/campaign-backend/internal/models"
)

// Pacing bounds. Delays are randomized to read as human sending, never a
// constant cadence, and always land inside [MinDelay, MaxDelay].
const (
	MinDelay = time.Second
	MaxDelay = 90 * time.Second

	baseDelayMin = 4 * time.Second
	baseDelayMax = 12 * time.Second

	// Occasionally a sender "steps away" for a longer pause.
	longPauseChance = 0.12
	longPauseMin    = 15 * time.Second
	longPauseMax    = 45 * time.Second

	// Campaigns past this size pace faster or they would never finish.
	largeCampaignSize  = 500
	largeCampaignScale = 0.6
)

// ComputeDelay returns the wait before the next send. It only computes a
// duration; the dispatch loop does the sleeping. The result is randomized
// (stable in distribution, not value), derived from the send position, a
// per-sender jitter, the elapsed campaign time, and an optional timezone
// policy, and is always positive.
func ComputeDelay(sendIndex, sentSoFar, totalRecipients int, senderEmail string, campaignStart time.Time, policy *models.TimezonePolicy) time.Duration {
	delay := baseDelayMin + time.Duration(rand.Int63n(int64(baseDelayMax-baseDelayMin)))

	if rand.Float64() < longPauseChance {
		delay = longPauseMin + time.Duration(rand.Int63n(int64(longPauseMax-longPauseMin)))
	}

	// Per-sender jitter so rotating senders don't tick in lockstep.
	delay += senderJitter(senderEmail)

	// Warm-up: the first few sends of a campaign run a touch slower.
	if sendIndex < 5 && time.Since(campaignStart) < 2*time.Minute {
		delay += time.Duration(rand.Int63n(int64(3 * time.Second)))
	}

	if totalRecipients > largeCampaignSize {
		delay = time.Duration(float64(delay) * largeCampaignScale)
	}

	// Inside a constrained sending window, spread the remaining volume a
	// little further apart.
	if policy != nil && policy.RespectBusinessHours && sentSoFar < totalRecipients {
		delay += time.Duration(rand.Int63n(int64(2 * time.Second)))
	}

	if delay < MinDelay {
		delay = MinDelay
	}
	if delay > MaxDelay {
		delay = MaxDelay
	}

	return delay
}

// senderJitter derives a stable 0-3s offset from the sender address.
func senderJitter(senderEmail string) time.Duration {
	h := fnv.New32a()
	h.Write([]byte(senderEmail))
	return time.Duration(h.Sum32()%3000) * time.Millisecond
}

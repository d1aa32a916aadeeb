package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coldreach/campaign-backend/internal/models"
	"github.com/coldreach/campaign-backend/internal/repository"
	"github.com/coldreach/campaign-backend/internal/sender"
)

// chunkDelayCap bounds per-email delays inside chunk executions, which run
// under host execution-time ceilings.
const chunkDelayCap = 30 * time.Second

// ErrNoSendersAvailable aborts a dispatch before the first send.
var ErrNoSendersAvailable = models.ErrCapacityWithMsg("no senders available after filtering")

// DelayFunc computes the inter-send wait; swapped out in tests.
type DelayFunc func(sendIndex, sentSoFar, totalRecipients int, senderEmail string, campaignStart time.Time, policy *models.TimezonePolicy) time.Duration

// Stats are the terminal counters of one dispatch pass.
type Stats struct {
	Sent       int `json:"sent"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// CampaignParams is everything one full campaign run needs.
type CampaignParams struct {
	CampaignID      string
	CampaignName    string
	Subject         string
	Body            string
	Recipients      []models.Recipient
	Senders         []models.Sender
	SelectedSenders []string
	TimezonePolicy  *models.TimezonePolicy
}

// ChunkParams is one bounded slice of a large campaign. StartIndex positions
// the chunk inside the whole recipient list for round-robin assignment and
// idempotency keys.
type ChunkParams struct {
	CampaignID      string
	ChunkIndex      int
	TotalChunks     int
	StartIndex      int
	Recipients      []models.Recipient
	Subject         string
	Body            string
	Senders         []models.Sender
	SelectedSenders []string
	TimezonePolicy  *models.TimezonePolicy
}

// RunnerConfig holds the pacing knobs of the dispatch loop.
type RunnerConfig struct {
	// SleepStep is the granularity of interruptible sleeps; a stop takes
	// effect within one step.
	SleepStep time.Duration
	// WindowRecheck is the wait between checks while outside the allowed
	// sending window.
	WindowRecheck time.Duration
}

// Runner executes campaign dispatch: one strictly sequential loop per
// campaign, cooperative cancellation via the durable status, per-recipient
// failures recorded and survived. The design assumes at most one active
// dispatcher per campaign ID.
type Runner struct {
	campaigns repository.CampaignRepository
	logs      repository.EmailLogRepository
	transport sender.Sender
	live      *LiveTracker
	logger    *slog.Logger

	sleepStep     time.Duration
	windowRecheck time.Duration
	delayFunc     DelayFunc
}

// NewRunner creates a dispatch runner
func NewRunner(
	campaigns repository.CampaignRepository,
	logs repository.EmailLogRepository,
	transport sender.Sender,
	live *LiveTracker,
	cfg RunnerConfig,
	logger *slog.Logger,
) *Runner {
	if cfg.SleepStep <= 0 {
		cfg.SleepStep = 2 * time.Second
	}
	if cfg.WindowRecheck <= 0 {
		cfg.WindowRecheck = 5 * time.Minute
	}

	return &Runner{
		campaigns:     campaigns,
		logs:          logs,
		transport:     transport,
		live:          live,
		logger:        logger,
		sleepStep:     cfg.SleepStep,
		windowRecheck: cfg.WindowRecheck,
		delayFunc:     ComputeDelay,
	}
}

// RunCampaign executes the full dispatch loop for one campaign and returns
// the terminal counters of this pass.
func (r *Runner) RunCampaign(ctx context.Context, params CampaignParams) (Stats, error) {
	available := models.FilterSenders(params.Senders, params.SelectedSenders)
	if len(available) == 0 {
		return Stats{}, ErrNoSendersAvailable
	}

	instance, err := r.campaigns.GetByID(ctx, params.CampaignID)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load campaign instance: %w", err)
	}
	if models.IsTerminal(instance.Status) {
		r.logger.Info("campaign already terminal, skipping dispatch",
			slog.String("campaign_id", params.CampaignID),
			slog.String("status", instance.Status),
		)
		return Stats{}, nil
	}

	r.live.Track(instance)

	r.logger.Info("starting campaign dispatch",
		slog.String("campaign_id", params.CampaignID),
		slog.String("campaign_name", params.CampaignName),
		slog.Int("recipients", len(params.Recipients)),
		slog.Int("senders", len(available)),
	)

	// One-time pre-campaign wait for business hours; per-email gating
	// happens inside the loop.
	if params.TimezonePolicy != nil && params.TimezonePolicy.RespectBusinessHours && !IsBusinessHours(params.TimezonePolicy) {
		wait := UntilBusinessHours(params.TimezonePolicy)
		if wait > 0 {
			r.logger.Info("waiting for business hours",
				slog.String("campaign_id", params.CampaignID),
				slog.Duration("wait", wait),
			)
			if stopped := r.sleepInterruptible(ctx, params.CampaignID, wait); stopped {
				if err := ctx.Err(); err != nil {
					return Stats{}, err
				}
				r.finish(ctx, params.CampaignID, Stats{}, false)
				return Stats{}, nil
			}
		}
	}

	sequence, forcedAt := PlanDistribution(available, len(params.Recipients))
	for _, pos := range forcedAt {
		r.logger.Warn("forced consecutive sender in distribution plan",
			slog.String("campaign_id", params.CampaignID),
			slog.Int("position", pos),
		)
	}

	senderByEmail := make(map[string]models.Sender, len(available))
	for _, s := range available {
		senderByEmail[s.Email] = s
	}

	var stats Stats
	attemptedAll := true

	for i, recipient := range params.Recipients {
		// The durable status is authoritative; re-read it before every
		// send decision.
		if r.isStopped(ctx, params.CampaignID) {
			r.logger.Info("campaign stopped, terminating dispatch loop",
				slog.String("campaign_id", params.CampaignID),
				slog.Int("position", i),
				slog.Int("total", len(params.Recipients)),
			)
			attemptedAll = false
			break
		}

		from := senderByEmail[sequence[i]]
		r.attempt(ctx, params.CampaignID, i, recipient, from, params.Subject, params.Body, &stats)

		if i < len(params.Recipients)-1 {
			if stopped := r.waitForWindow(ctx, params.CampaignID, params.TimezonePolicy); stopped {
				attemptedAll = false
				break
			}

			delay := r.delayFunc(i, stats.Sent, len(params.Recipients), from.Email, instance.StartTime, params.TimezonePolicy)
			if stopped := r.delayBetweenSends(ctx, params.CampaignID, delay); stopped {
				attemptedAll = false
				break
			}
		}
	}

	// A cancelled context is process shutdown, not a stop: leave the durable
	// status untouched and report the error so a queued job is redelivered.
	// The email log keys make the re-run skip what was already attempted.
	if err := ctx.Err(); err != nil {
		r.logger.Info("campaign dispatch interrupted, leaving campaign for redelivery",
			slog.String("campaign_id", params.CampaignID),
			slog.Int("sent", stats.Sent),
			slog.Int("total", len(params.Recipients)),
		)
		return stats, err
	}

	r.finish(ctx, params.CampaignID, stats, attemptedAll)
	return stats, nil
}

// RunChunk executes one bounded slice of a large campaign. Sender assignment
// is plain round-robin from StartIndex: fairness is a whole-campaign
// property and is deliberately approximated at chunk granularity. Chunks are
// delivered at-least-once, so recipients already present in the email log
// are skipped.
func (r *Runner) RunChunk(ctx context.Context, params ChunkParams) (Stats, error) {
	available := models.FilterSenders(params.Senders, params.SelectedSenders)
	if len(available) == 0 {
		return Stats{}, ErrNoSendersAvailable
	}

	r.logger.Info("processing campaign chunk",
		slog.String("campaign_id", params.CampaignID),
		slog.Int("chunk", params.ChunkIndex+1),
		slog.Int("total_chunks", params.TotalChunks),
		slog.Int("recipients", len(params.Recipients)),
		slog.Int("start_index", params.StartIndex),
	)

	var stats Stats
	attemptedAll := true

	for i, recipient := range params.Recipients {
		if r.isStopped(ctx, params.CampaignID) {
			r.logger.Info("campaign stopped, abandoning chunk",
				slog.String("campaign_id", params.CampaignID),
				slog.Int("chunk", params.ChunkIndex+1),
			)
			attemptedAll = false
			break
		}

		index := params.StartIndex + i

		// Idempotency: a redelivered chunk must not re-send what an earlier
		// delivery already attempted.
		if done, err := r.logs.Exists(ctx, params.CampaignID, index); err != nil {
			r.logger.Warn("idempotency check failed, proceeding",
				slog.String("campaign_id", params.CampaignID),
				slog.Int("recipient_index", index),
				slog.String("error", err.Error()),
			)
		} else if done {
			continue
		}

		from := available[index%len(available)]
		r.attemptAt(ctx, params.CampaignID, index, recipient, from, params.Subject, params.Body, &stats)

		if i < len(params.Recipients)-1 {
			if stopped := r.waitForWindow(ctx, params.CampaignID, params.TimezonePolicy); stopped {
				attemptedAll = false
				break
			}

			delay := r.delayFunc(index, stats.Sent, len(params.Recipients), from.Email, time.Now(), params.TimezonePolicy)
			if delay > chunkDelayCap {
				delay = chunkDelayCap
			}
			if stopped := r.sleepInterruptible(ctx, params.CampaignID, delay); stopped {
				attemptedAll = false
				break
			}
		}
	}

	// Shutdown mid-chunk: surface the cancellation so the job is redelivered
	// rather than acked; the recorded attempts make the re-run cheap.
	if err := ctx.Err(); err != nil {
		r.logger.Info("chunk dispatch interrupted, leaving job for redelivery",
			slog.String("campaign_id", params.CampaignID),
			slog.Int("chunk", params.ChunkIndex+1),
			slog.Int("sent", stats.Sent),
		)
		return stats, err
	}

	// The last chunk to see the campaign fully attempted closes it out.
	if attemptedAll {
		if instance, err := r.campaigns.GetByID(ctx, params.CampaignID); err == nil && instance.Sent >= instance.Total {
			r.finish(ctx, params.CampaignID, stats, true)
			return stats, nil
		}
	}

	return stats, nil
}

// attempt sends to the recipient at sequence position i of a full run.
func (r *Runner) attempt(ctx context.Context, campaignID string, index int, recipient models.Recipient, from models.Sender, subject, body string, stats *Stats) {
	// At-least-once whole-campaign jobs can replay too; skip recorded
	// attempts just like the chunk path.
	if done, err := r.logs.Exists(ctx, campaignID, index); err == nil && done {
		return
	}
	r.attemptAt(ctx, campaignID, index, recipient, from, subject, body, stats)
}

// attemptAt performs one send and records the outcome. A send failure is
// counted and survived; a bookkeeping failure is logged and survived. Only
// the counters say how a campaign went.
func (r *Runner) attemptAt(ctx context.Context, campaignID string, index int, recipient models.Recipient, from models.Sender, subject, body string, stats *Stats) {
	msg := &sender.Message{
		SenderEmail:    from.Email,
		SenderName:     from.DisplayName,
		RecipientEmail: recipient.Email,
		RecipientName:  recipient.DisplayName(),
		Subject:        Personalize(subject, recipient, from),
		PlainText:      Personalize(body, recipient, from),
	}

	result, sendErr := r.transport.Send(ctx, msg)

	stats.Sent++
	log := &models.EmailLog{
		CampaignID:     campaignID,
		RecipientIndex: index,
		Email:          recipient.Email,
		Name:           recipient.Name,
		Sender:         from.Email,
	}

	var successDelta, failedDelta int
	if sendErr != nil {
		stats.Failed++
		failedDelta = 1
		errMsg := sendErr.Error()
		log.Status = models.EmailStatusFailed
		log.Error = &errMsg
		r.logger.Warn("send failed",
			slog.String("campaign_id", campaignID),
			slog.String("recipient", recipient.Email),
			slog.String("sender", from.Email),
			slog.String("error", errMsg),
		)
	} else {
		stats.Successful++
		successDelta = 1
		log.Status = models.EmailStatusSuccess
		if result != nil && result.MessageID != "" {
			log.MessageID = &result.MessageID
		}
		r.logger.Info("sent",
			slog.String("campaign_id", campaignID),
			slog.String("recipient", recipient.Email),
			slog.String("sender", from.Email),
			slog.Int("sent", stats.Sent),
		)
	}

	// Persistence failures degrade, never abort an in-progress loop.
	if err := r.logs.Append(ctx, log); err != nil {
		r.logger.Warn("failed to persist email log",
			slog.String("campaign_id", campaignID),
			slog.String("recipient", recipient.Email),
			slog.String("error", err.Error()),
		)
	}
	if err := r.campaigns.IncrementCounters(ctx, campaignID, 1, successDelta, failedDelta); err != nil {
		r.logger.Warn("failed to persist campaign counters",
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
	}
	r.live.IncrementCounters(campaignID, 1, successDelta, failedDelta)
}

// delayBetweenSends persists the countdown for observability, sleeps
// interruptibly, then clears it.
func (r *Runner) delayBetweenSends(ctx context.Context, campaignID string, delay time.Duration) (stopped bool) {
	nextIn := int(delay.Seconds() + 0.5)
	delayMs := delay.Milliseconds()
	if err := r.campaigns.SetNextEmail(ctx, campaignID, &nextIn, &delayMs); err != nil {
		r.logger.Warn("failed to persist next-email countdown",
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
	}
	r.live.SetNextEmail(campaignID, &nextIn, &delayMs)

	stopped = r.sleepInterruptible(ctx, campaignID, delay)

	if err := r.campaigns.SetNextEmail(ctx, campaignID, nil, nil); err != nil {
		r.logger.Warn("failed to clear next-email countdown",
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
	}
	r.live.SetNextEmail(campaignID, nil, nil)
	return stopped
}

// waitForWindow blocks while the policy forbids sending, re-checking at the
// configured interval. Safe only because dispatch loops run in a worker
// process or a dedicated goroutine, never on a request path.
func (r *Runner) waitForWindow(ctx context.Context, campaignID string, policy *models.TimezonePolicy) (stopped bool) {
	if policy == nil {
		return false
	}

	for !IsSendingAllowedToday(policy) || !IsWithinSendingWindow(policy) {
		r.logger.Info("outside sending window, waiting",
			slog.String("campaign_id", campaignID),
			slog.Duration("recheck_in", r.windowRecheck),
		)
		if stopped := r.sleepInterruptible(ctx, campaignID, r.windowRecheck); stopped {
			return true
		}
	}
	return false
}

// sleepInterruptible sleeps for d in small steps, re-reading the durable
// status each step so an external stop takes effect within one step.
func (r *Runner) sleepInterruptible(ctx context.Context, campaignID string, d time.Duration) (stopped bool) {
	deadline := time.Now().Add(d)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		step := r.sleepStep
		if remaining < step {
			step = remaining
		}

		select {
		case <-ctx.Done():
			return true
		case <-time.After(step):
		}

		if r.isStopped(ctx, campaignID) {
			return true
		}
	}
}

// isStopped re-reads the authoritative durable status. Read failures do not
// stop the loop; they only delay observation of a stop by one check point.
func (r *Runner) isStopped(ctx context.Context, campaignID string) bool {
	instance, err := r.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		r.logger.Warn("failed to re-read campaign status",
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return models.IsTerminal(instance.Status)
}

// finish closes out a dispatch pass. Completion only applies when every
// recipient was attempted; it never overwrites an explicit stop (the store
// enforces that too).
func (r *Runner) finish(ctx context.Context, campaignID string, stats Stats, attemptedAll bool) {
	if attemptedAll {
		if err := r.campaigns.Complete(ctx, campaignID); err != nil {
			r.logger.Warn("failed to mark campaign completed",
				slog.String("campaign_id", campaignID),
				slog.String("error", err.Error()),
			)
		}
	}

	terminal := models.CampaignStatusStopped
	if instance, err := r.campaigns.GetByID(ctx, campaignID); err == nil {
		terminal = instance.Status
	}
	r.live.Finish(campaignID, terminal)

	r.logger.Info("campaign dispatch finished",
		slog.String("campaign_id", campaignID),
		slog.String("status", terminal),
		slog.Int("sent", stats.Sent),
		slog.Int("successful", stats.Successful),
		slog.Int("failed", stats.Failed),
	)
}

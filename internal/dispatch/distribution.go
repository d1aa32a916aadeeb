package dispatch

import (
	"github.com/coldreach/campaign-backend/internal/models"
)

// FairnessThreshold is the recipient count above which the fair-share
// planner falls back to plain round-robin. The fairness algorithm walks the
// whole plan per recipient, so its cost grows with N×senders; past this size
// the marginal fairness is not worth the CPU and memory.
const FairnessThreshold = 1000

// PlanEntry is one sender's allocation for a single planning pass.
type PlanEntry struct {
	Sender       string
	DisplayName  string
	Domain       string
	TargetCount  int
	CurrentCount int
}

// BuildPlan computes per-sender target counts: a base fair share of
// floor(N/senders) each, with the remainder distributed domain by domain
// (each domain absorbing at most its sender count's worth), then sender by
// sender in pool order. Targets always sum to recipientCount.
func BuildPlan(senders []models.Sender, recipientCount int) []PlanEntry {
	if len(senders) == 0 || recipientCount <= 0 {
		return nil
	}

	base := recipientCount / len(senders)
	remainder := recipientCount % len(senders)

	// Remainder units go domain by domain in first-appearance order, each
	// domain absorbing at most one unit per sender it owns.
	domainOrder := []string{}
	domainSenders := map[string]int{}
	for _, s := range senders {
		d := s.Domain()
		if _, seen := domainSenders[d]; !seen {
			domainOrder = append(domainOrder, d)
		}
		domainSenders[d]++
	}

	domainExtra := map[string]int{}
	left := remainder
	for _, d := range domainOrder {
		if left <= 0 {
			break
		}
		extra := domainSenders[d]
		if extra > left {
			extra = left
		}
		domainExtra[d] = extra
		left -= extra
	}

	plan := make([]PlanEntry, len(senders))
	for i, s := range senders {
		d := s.Domain()
		target := base
		if domainExtra[d] > 0 {
			target++
			domainExtra[d]--
		}
		plan[i] = PlanEntry{
			Sender:      s.Email,
			DisplayName: s.DisplayName,
			Domain:      d,
			TargetCount: target,
		}
	}

	return plan
}

// PlanDistribution produces one sender per recipient index. Below the
// fairness threshold it enforces exact target counts with a best-effort
// no-consecutive-repeat constraint; the returned forced slice lists the
// positions where a repeat could not be avoided. Above the threshold it is
// plain round-robin and forced is always nil.
func PlanDistribution(senders []models.Sender, recipientCount int) (sequence []string, forced []int) {
	if len(senders) == 0 || recipientCount <= 0 {
		return nil, nil
	}

	if recipientCount > FairnessThreshold {
		sequence = make([]string, recipientCount)
		for i := range sequence {
			sequence[i] = senders[i%len(senders)].Email
		}
		return sequence, nil
	}

	plan := BuildPlan(senders, recipientCount)
	sequence = make([]string, 0, recipientCount)
	cursor := 0

	for emailIndex := 0; emailIndex < recipientCount; emailIndex++ {
		var last string
		if len(sequence) > 0 {
			last = sequence[len(sequence)-1]
		}

		// First pass: under target and different from the previous sender.
		picked := -1
		for attempts := 0; attempts < len(plan); attempts++ {
			i := cursor % len(plan)
			if plan[i].CurrentCount < plan[i].TargetCount && plan[i].Sender != last {
				picked = i
				break
			}
			cursor++
		}

		// Second pass: relax the no-repeat constraint.
		if picked < 0 {
			cursor = 0
			for attempts := 0; attempts < len(plan); attempts++ {
				i := cursor % len(plan)
				if plan[i].CurrentCount < plan[i].TargetCount {
					picked = i
					if plan[i].Sender == last {
						forced = append(forced, emailIndex)
					}
					break
				}
				cursor++
			}
		}

		// All targets met: cannot happen while sum(target) == N, but keep a
		// round-robin fallback rather than a hole in the sequence.
		if picked < 0 {
			sequence = append(sequence, plan[emailIndex%len(plan)].Sender)
			continue
		}

		plan[picked].CurrentCount++
		sequence = append(sequence, plan[picked].Sender)
		cursor++
	}

	return sequence, forced
}

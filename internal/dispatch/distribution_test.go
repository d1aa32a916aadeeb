package dispatch

import (
	"testing"

	"github.com/coldreach/campaign-backend/internal/models"
)

func senderPool(emails ...string) []models.Sender {
	pool := make([]models.Sender, len(emails))
	for i, e := range emails {
		pool[i] = models.Sender{Email: e, DisplayName: e}
	}
	return pool
}

func TestBuildPlanEvenSplit(t *testing.T) {
	pool := senderPool("a@x.com", "b@x.com")

	plan := BuildPlan(pool, 10)

	if len(plan) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(plan))
	}
	for _, entry := range plan {
		if entry.TargetCount != 5 {
			t.Errorf("sender %s: expected target 5, got %d", entry.Sender, entry.TargetCount)
		}
	}
}

func TestBuildPlanRemainderGoesDomainByDomain(t *testing.T) {
	// 10 recipients over 3 senders: base 3, remainder 1. The first domain in
	// appearance order absorbs the extra.
	pool := senderPool("a1@x.com", "a2@x.com", "b1@y.com")

	plan := BuildPlan(pool, 10)

	if plan[0].TargetCount != 4 {
		t.Errorf("a1@x.com: expected target 4, got %d", plan[0].TargetCount)
	}
	if plan[1].TargetCount != 3 {
		t.Errorf("a2@x.com: expected target 3, got %d", plan[1].TargetCount)
	}
	if plan[2].TargetCount != 3 {
		t.Errorf("b1@y.com: expected target 3, got %d", plan[2].TargetCount)
	}
}

func TestBuildPlanRemainderSpansDomains(t *testing.T) {
	// 11 recipients over 3 senders: remainder 2. Domain x absorbs both since
	// it owns two senders.
	pool := senderPool("a1@x.com", "a2@x.com", "b1@y.com")

	plan := BuildPlan(pool, 11)

	if plan[0].TargetCount != 4 || plan[1].TargetCount != 4 {
		t.Errorf("domain x senders: expected targets 4/4, got %d/%d", plan[0].TargetCount, plan[1].TargetCount)
	}
	if plan[2].TargetCount != 3 {
		t.Errorf("b1@y.com: expected target 3, got %d", plan[2].TargetCount)
	}
}

func TestBuildPlanTargetsSumToRecipientCount(t *testing.T) {
	cases := []struct {
		senders    []models.Sender
		recipients int
	}{
		{senderPool("a@x.com"), 7},
		{senderPool("a@x.com", "b@y.com"), 1},
		{senderPool("a@x.com", "b@x.com", "c@y.com", "d@z.com"), 17},
		{senderPool("a@x.com", "b@y.com", "c@z.com"), 100},
	}

	for _, tc := range cases {
		plan := BuildPlan(tc.senders, tc.recipients)
		sum := 0
		for _, entry := range plan {
			sum += entry.TargetCount
		}
		if sum != tc.recipients {
			t.Errorf("%d senders, %d recipients: targets sum to %d", len(tc.senders), tc.recipients, sum)
		}
	}
}

func TestBuildPlanEmptyInputs(t *testing.T) {
	if plan := BuildPlan(nil, 10); plan != nil {
		t.Errorf("expected nil plan for empty pool, got %v", plan)
	}
	if plan := BuildPlan(senderPool("a@x.com"), 0); plan != nil {
		t.Errorf("expected nil plan for zero recipients, got %v", plan)
	}
}

func TestPlanDistributionMeetsTargets(t *testing.T) {
	pool := senderPool("a1@x.com", "a2@x.com", "b1@y.com")
	n := 10

	sequence, _ := PlanDistribution(pool, n)

	if len(sequence) != n {
		t.Fatalf("expected %d assignments, got %d", n, len(sequence))
	}

	counts := map[string]int{}
	for _, email := range sequence {
		counts[email]++
	}
	for _, entry := range BuildPlan(pool, n) {
		if counts[entry.Sender] != entry.TargetCount {
			t.Errorf("sender %s: expected %d assignments, got %d", entry.Sender, entry.TargetCount, counts[entry.Sender])
		}
	}
}

func TestPlanDistributionAvoidsConsecutiveRepeats(t *testing.T) {
	pool := senderPool("a@x.com", "b@x.com", "c@y.com")

	sequence, forced := PlanDistribution(pool, 30)

	if len(forced) != 0 {
		t.Fatalf("expected no forced repeats with 3 senders, got %v", forced)
	}
	for i := 1; i < len(sequence); i++ {
		if sequence[i] == sequence[i-1] {
			t.Errorf("consecutive repeat at position %d: %s", i, sequence[i])
		}
	}
}

func TestPlanDistributionSingleSenderForcesRepeats(t *testing.T) {
	sequence, forced := PlanDistribution(senderPool("only@x.com"), 5)

	if len(sequence) != 5 {
		t.Fatalf("expected 5 assignments, got %d", len(sequence))
	}
	// Every position after the first is a forced repeat.
	if len(forced) != 4 {
		t.Errorf("expected 4 forced positions, got %d (%v)", len(forced), forced)
	}
	for i, pos := range forced {
		if sequence[pos] != "only@x.com" {
			t.Errorf("forced position %d does not replay the single sender", pos)
		}
		if pos != i+1 {
			t.Errorf("expected forced positions 1..4, got %v", forced)
		}
	}
}

func TestPlanDistributionLargeCampaignRoundRobin(t *testing.T) {
	pool := senderPool("a@x.com", "b@y.com", "c@z.com")
	n := FairnessThreshold + 100

	sequence, forced := PlanDistribution(pool, n)

	if len(sequence) != n {
		t.Fatalf("expected %d assignments, got %d", n, len(sequence))
	}
	if forced != nil {
		t.Errorf("round-robin path should not report forced positions, got %v", forced)
	}
	for i, email := range sequence {
		if email != pool[i%len(pool)].Email {
			t.Fatalf("position %d: expected %s, got %s", i, pool[i%len(pool)].Email, email)
		}
	}
}

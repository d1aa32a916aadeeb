package dispatch

import (
	"strings"
	"time"

	"github.com/coldreach/campaign-backend/internal/models"
)

// Timezone predicates evaluate the policy against the current wall clock in
// the policy's target zone. The ...At variants exist so tests can pin the
// instant.

// IsSendingAllowedToday checks the current weekday against the policy's
// allowed days. An empty list allows every day.
func IsSendingAllowedToday(policy *models.TimezonePolicy) bool {
	return isSendingAllowedTodayAt(policy, time.Now())
}

// IsWithinSendingWindow checks the current hour against the policy's
// [SendTimeStart, SendTimeEnd) window.
func IsWithinSendingWindow(policy *models.TimezonePolicy) bool {
	return isWithinSendingWindowAt(policy, time.Now())
}

// IsBusinessHours reports whether it is an allowed day and the current hour
// falls inside [BusinessHourStart, BusinessHourEnd).
func IsBusinessHours(policy *models.TimezonePolicy) bool {
	return isBusinessHoursAt(policy, time.Now())
}

// UntilBusinessHours returns the non-negative gap to the next instant that
// satisfies IsBusinessHours. Used once as a pre-campaign wait, not per email.
func UntilBusinessHours(policy *models.TimezonePolicy) time.Duration {
	return untilBusinessHoursAt(policy, time.Now())
}

func policyLocation(policy *models.TimezonePolicy) *time.Location {
	loc, err := time.LoadLocation(policy.TargetTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isSendingAllowedTodayAt(policy *models.TimezonePolicy, now time.Time) bool {
	if policy == nil || len(policy.AllowedDays) == 0 {
		return true
	}
	day := now.In(policyLocation(policy)).Weekday().String()
	for _, allowed := range policy.AllowedDays {
		if strings.EqualFold(allowed, day) {
			return true
		}
	}
	return false
}

func isWithinSendingWindowAt(policy *models.TimezonePolicy, now time.Time) bool {
	if policy == nil {
		return true
	}
	if policy.SendTimeStart == 0 && policy.SendTimeEnd == 0 {
		return true
	}
	hour := now.In(policyLocation(policy)).Hour()
	return hour >= policy.SendTimeStart && hour < policy.SendTimeEnd
}

func isBusinessHoursAt(policy *models.TimezonePolicy, now time.Time) bool {
	if policy == nil {
		return true
	}
	if !isSendingAllowedTodayAt(policy, now) {
		return false
	}
	hour := now.In(policyLocation(policy)).Hour()
	return hour >= policy.BusinessHourStart && hour < policy.BusinessHourEnd
}

func untilBusinessHoursAt(policy *models.TimezonePolicy, now time.Time) time.Duration {
	if policy == nil || isBusinessHoursAt(policy, now) {
		return 0
	}

	loc := policyLocation(policy)
	local := now.In(loc)

	// Step to the top of each following hour until the predicate holds.
	// Bounded at two weeks; a policy that never opens gets zero rather than
	// an infinite wait.
	probe := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc).Add(time.Hour)
	for i := 0; i < 14*24; i++ {
		if isBusinessHoursAt(policy, probe) {
			return probe.Sub(now)
		}
		probe = probe.Add(time.Hour)
	}

	return 0
}

package dispatch

import (
	"testing"
	"time"

	"github.com/coldreach/campaign-backend/internal/models"
)

// 2024-06-12 is a Wednesday.
func wednesdayAt(hour int) time.Time {
	return time.Date(2024, 6, 12, hour, 30, 0, 0, time.UTC)
}

func TestIsSendingAllowedTodayAt(t *testing.T) {
	policy := &models.TimezonePolicy{
		TargetTimezone: "UTC",
		AllowedDays:    []string{"Monday", "Wednesday", "friday"},
	}

	if !isSendingAllowedTodayAt(policy, wednesdayAt(10)) {
		t.Error("Wednesday should be allowed")
	}

	thursday := wednesdayAt(10).Add(24 * time.Hour)
	if isSendingAllowedTodayAt(policy, thursday) {
		t.Error("Thursday should not be allowed")
	}

	friday := wednesdayAt(10).Add(48 * time.Hour)
	if !isSendingAllowedTodayAt(policy, friday) {
		t.Error("day matching should be case-insensitive")
	}
}

func TestIsSendingAllowedTodayEmptyDaysAllowsAll(t *testing.T) {
	policy := &models.TimezonePolicy{TargetTimezone: "UTC"}

	for offset := 0; offset < 7; offset++ {
		day := wednesdayAt(10).Add(time.Duration(offset) * 24 * time.Hour)
		if !isSendingAllowedTodayAt(policy, day) {
			t.Errorf("offset %d: empty allowed days should allow every day", offset)
		}
	}
}

func TestIsWithinSendingWindowAt(t *testing.T) {
	policy := &models.TimezonePolicy{
		TargetTimezone: "UTC",
		SendTimeStart:  9,
		SendTimeEnd:    17,
	}

	cases := []struct {
		hour int
		want bool
	}{
		{8, false},
		{9, true},
		{12, true},
		{16, true},
		{17, false}, // half-open window
		{23, false},
	}

	for _, tc := range cases {
		if got := isWithinSendingWindowAt(policy, wednesdayAt(tc.hour)); got != tc.want {
			t.Errorf("hour %d: expected %v, got %v", tc.hour, tc.want, got)
		}
	}
}

func TestIsWithinSendingWindowZeroWindowAllowsAll(t *testing.T) {
	policy := &models.TimezonePolicy{TargetTimezone: "UTC"}

	if !isWithinSendingWindowAt(policy, wednesdayAt(3)) {
		t.Error("an unset window should allow any hour")
	}
}

func TestIsBusinessHoursAt(t *testing.T) {
	policy := &models.TimezonePolicy{
		TargetTimezone:    "UTC",
		BusinessHourStart: 9,
		BusinessHourEnd:   17,
		AllowedDays:       []string{"Wednesday"},
	}

	if !isBusinessHoursAt(policy, wednesdayAt(10)) {
		t.Error("Wednesday 10:30 should be business hours")
	}
	if isBusinessHoursAt(policy, wednesdayAt(18)) {
		t.Error("Wednesday 18:30 should not be business hours")
	}

	thursday := wednesdayAt(10).Add(24 * time.Hour)
	if isBusinessHoursAt(policy, thursday) {
		t.Error("Thursday should not be business hours when only Wednesday is allowed")
	}
}

func TestUntilBusinessHoursAt(t *testing.T) {
	policy := &models.TimezonePolicy{
		TargetTimezone:    "UTC",
		BusinessHourStart: 9,
		BusinessHourEnd:   17,
	}

	// Already inside: no wait.
	if wait := untilBusinessHoursAt(policy, wednesdayAt(10)); wait != 0 {
		t.Errorf("expected zero wait inside business hours, got %v", wait)
	}

	// 06:30 -> 09:00 same day.
	wait := untilBusinessHoursAt(policy, wednesdayAt(6))
	if wait != 2*time.Hour+30*time.Minute {
		t.Errorf("expected 2h30m wait, got %v", wait)
	}

	// 18:30 -> 09:00 next day.
	wait = untilBusinessHoursAt(policy, wednesdayAt(18))
	if wait != 14*time.Hour+30*time.Minute {
		t.Errorf("expected 14h30m wait, got %v", wait)
	}
}

func TestUntilBusinessHoursRespectsAllowedDays(t *testing.T) {
	policy := &models.TimezonePolicy{
		TargetTimezone:    "UTC",
		BusinessHourStart: 9,
		BusinessHourEnd:   17,
		AllowedDays:       []string{"Friday"},
	}

	// Wednesday 10:30 -> Friday 09:00.
	wait := untilBusinessHoursAt(policy, wednesdayAt(10))
	want := 46*time.Hour + 30*time.Minute
	if wait != want {
		t.Errorf("expected %v wait, got %v", want, wait)
	}
}

func TestUnknownTimezoneFallsBackToUTC(t *testing.T) {
	policy := &models.TimezonePolicy{
		TargetTimezone: "Not/AZone",
		SendTimeStart:  9,
		SendTimeEnd:    17,
	}

	if !isWithinSendingWindowAt(policy, wednesdayAt(10)) {
		t.Error("unknown timezone should evaluate in UTC")
	}
}

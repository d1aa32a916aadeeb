package models

// TimezonePolicy gates sending on the recipient market's local time. Hours
// are 0-23 in the target zone; windows are half-open [start, end).
type TimezonePolicy struct {
	TargetTimezone       string   `json:"target_timezone"`
	RespectBusinessHours bool     `json:"respect_business_hours"`
	BusinessHourStart    int      `json:"business_hour_start"`
	BusinessHourEnd      int      `json:"business_hour_end"`
	SendTimeStart        int      `json:"send_time_start"`
	SendTimeEnd          int      `json:"send_time_end"`
	AllowedDays          []string `json:"allowed_days,omitempty"` // weekday names, empty = all
}

// Validate performs basic validation on the policy
func (p *TimezonePolicy) Validate() error {
	if p.TargetTimezone == "" {
		return ErrInvalidInput("target_timezone is required")
	}
	if p.BusinessHourStart < 0 || p.BusinessHourStart > 23 ||
		p.BusinessHourEnd < 0 || p.BusinessHourEnd > 24 {
		return ErrInvalidInput("business hours must be within 0-24")
	}
	if p.SendTimeStart < 0 || p.SendTimeStart > 23 ||
		p.SendTimeEnd < 0 || p.SendTimeEnd > 24 {
		return ErrInvalidInput("send window must be within 0-24")
	}
	return nil
}

package models

import "strings"

// Sender is one verified from-address available for rotation.
type Sender struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Domain returns the part of the sender address after '@'.
func (s *Sender) Domain() string {
	if at := strings.Index(s.Email, "@"); at >= 0 {
		return s.Email[at+1:]
	}
	return ""
}

// Validate performs basic validation on sender data
func (s *Sender) Validate() error {
	if s.Email == "" {
		return ErrInvalidInput("email is required")
	}
	if !IsValidEmail(s.Email) {
		return ErrInvalidInput("invalid sender email: " + s.Email)
	}
	return nil
}

// GroupByDomain partitions a sender pool by domain. Every sender belongs to
// exactly one group.
func GroupByDomain(senders []Sender) map[string][]Sender {
	groups := make(map[string][]Sender)
	for _, s := range senders {
		d := s.Domain()
		groups[d] = append(groups[d], s)
	}
	return groups
}

// FilterSenders keeps only the senders whose email is in selected. An empty
// selection keeps the whole pool.
func FilterSenders(pool []Sender, selected []string) []Sender {
	if len(selected) == 0 {
		return pool
	}
	want := make(map[string]bool, len(selected))
	for _, email := range selected {
		want[strings.ToLower(strings.TrimSpace(email))] = true
	}
	out := make([]Sender, 0, len(pool))
	for _, s := range pool {
		if want[strings.ToLower(s.Email)] {
			out = append(out, s)
		}
	}
	return out
}

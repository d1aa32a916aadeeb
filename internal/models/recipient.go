package models

import (
	"regexp"
	"strings"
)

// Recipient is a single validated destination for a campaign email.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// IsValidEmail checks email syntax
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// SanitizeRecipients trims, lowercases and validates recipient addresses,
// dropping malformed entries and duplicates while preserving order. Every
// recipient that survives has a syntactically valid, non-empty email.
// Sanitizing an already-sanitized list returns it unchanged.
func SanitizeRecipients(raw []Recipient) []Recipient {
	seen := make(map[string]bool, len(raw))
	out := make([]Recipient, 0, len(raw))

	for _, r := range raw {
		email := strings.ToLower(strings.TrimSpace(r.Email))
		if email == "" || !IsValidEmail(email) {
			continue
		}
		if seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, Recipient{
			Email: email,
			Name:  strings.TrimSpace(r.Name),
		})
	}

	return out
}

// DisplayName returns the recipient's name, falling back to the local part of
// the address.
func (r *Recipient) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if at := strings.Index(r.Email, "@"); at > 0 {
		return r.Email[:at]
	}
	return r.Email
}

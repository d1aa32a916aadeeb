package models

import (
	"reflect"
	"testing"
)

func TestSanitizeRecipients_DropsMalformed(t *testing.T) {
	raw := []Recipient{
		{Email: "alice@example.com", Name: "Alice"},
		{Email: "not-an-email"},
		{Email: "bob@example.com"},
		{Email: "@missing-local.com"},
		{Email: "carol@example.com", Name: " Carol "},
	}

	got := SanitizeRecipients(raw)

	if len(got) != 3 {
		t.Fatalf("SanitizeRecipients() kept %d recipients, want 3", len(got))
	}
	want := []string{"alice@example.com", "bob@example.com", "carol@example.com"}
	for i, r := range got {
		if r.Email != want[i] {
			t.Errorf("recipient %d = %q, want %q", i, r.Email, want[i])
		}
	}
	if got[2].Name != "Carol" {
		t.Errorf("name not trimmed: %q", got[2].Name)
	}
}

func TestSanitizeRecipients_NormalizesAndDedupes(t *testing.T) {
	raw := []Recipient{
		{Email: " Alice@Example.COM ", Name: "Alice"},
		{Email: "alice@example.com", Name: "Duplicate"},
		{Email: "bob@example.com"},
	}

	got := SanitizeRecipients(raw)

	if len(got) != 2 {
		t.Fatalf("SanitizeRecipients() kept %d recipients, want 2", len(got))
	}
	if got[0].Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", got[0].Email)
	}
	if got[0].Name != "Alice" {
		t.Errorf("first occurrence should win, got name %q", got[0].Name)
	}
}

func TestSanitizeRecipients_Idempotent(t *testing.T) {
	raw := []Recipient{
		{Email: "Alice@Example.com "},
		{Email: "bogus"},
		{Email: "bob@example.com", Name: "Bob"},
	}

	once := SanitizeRecipients(raw)
	twice := SanitizeRecipients(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("sanitizing a sanitized list changed it:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestRecipientDisplayName(t *testing.T) {
	tests := []struct {
		name      string
		recipient Recipient
		want      string
	}{
		{"explicit name", Recipient{Email: "a@b.com", Name: "Alice"}, "Alice"},
		{"fallback to local part", Recipient{Email: "alice@example.com"}, "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.recipient.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroupByDomain(t *testing.T) {
	senders := []Sender{
		{Email: "a@one.com"},
		{Email: "b@two.com"},
		{Email: "c@one.com"},
	}

	groups := GroupByDomain(senders)

	if len(groups) != 2 {
		t.Fatalf("got %d domain groups, want 2", len(groups))
	}
	if len(groups["one.com"]) != 2 || len(groups["two.com"]) != 1 {
		t.Errorf("unexpected partition: %+v", groups)
	}

	// Partition check: every sender in exactly one group.
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != len(senders) {
		t.Errorf("partition covers %d senders, want %d", total, len(senders))
	}
}

func TestFilterSenders(t *testing.T) {
	pool := []Sender{
		{Email: "a@one.com"},
		{Email: "b@one.com"},
	}

	if got := FilterSenders(pool, nil); len(got) != 2 {
		t.Errorf("empty selection should keep pool, got %d", len(got))
	}
	if got := FilterSenders(pool, []string{"B@one.com"}); len(got) != 1 || got[0].Email != "b@one.com" {
		t.Errorf("selection filter failed: %+v", got)
	}
	if got := FilterSenders(pool, []string{"nobody@one.com"}); len(got) != 0 {
		t.Errorf("unknown selection should empty the pool, got %+v", got)
	}
}

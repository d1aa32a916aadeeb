// Package sender wraps the external email-sending API. The transport is
// opaque to the dispatch engine: one call, one attempt, success with an
// optional message ID or an error. Nothing here retries.
package sender

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Message is one personalized email ready for the wire.
type Message struct {
	SenderEmail    string `json:"sender_email"`
	SenderName     string `json:"sender_name"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
	Subject        string `json:"subject"`
	PlainText      string `json:"plain_text"`
}

// Result holds the provider's acknowledgment of an accepted message.
type Result struct {
	MessageID string `json:"message_id"`
}

// Sender defines the interface for sending one email
type Sender interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}

// mockSender simulates the provider with configurable success rate and
// network latency, for development and tests.
type mockSender struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
}

// NewMockSender creates a mock transport.
// successRate: probability of success (0.0 to 1.0), default 0.95.
func NewMockSender(successRate float64) Sender {
	if successRate <= 0 || successRate > 1.0 {
		successRate = 0.95
	}

	return &mockSender{
		successRate: successRate,
		minDelay:    50 * time.Millisecond,
		maxDelay:    200 * time.Millisecond,
	}
}

// Send simulates a provider call
func (s *mockSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	delay := s.minDelay + time.Duration(rand.Int63n(int64(s.maxDelay-s.minDelay)))

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if rand.Float64() > s.successRate {
		return nil, fmt.Errorf("mock sender failed: simulated provider error")
	}

	return &Result{MessageID: uuid.New().String()}, nil
}

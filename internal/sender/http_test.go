package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testMessage() *Message {
	return &Message{
		SenderEmail:    "a@x.com",
		SenderName:     "A",
		RecipientEmail: "r@dest.com",
		RecipientName:  "R",
		Subject:        "hi",
		PlainText:      "hello",
	}
}

func TestHTTPSenderSuccess(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		if msg.RecipientEmail != "r@dest.com" {
			t.Errorf("unexpected recipient %s", msg.RecipientEmail)
		}

		json.NewEncoder(w).Encode(map[string]string{"message_id": "abc-123"})
	}))
	defer server.Close()

	s := NewHTTPSender(HTTPConfig{BaseURL: server.URL, APIKey: "secret"})

	result, err := s.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MessageID != "abc-123" {
		t.Errorf("expected message ID abc-123, got %s", result.MessageID)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
}

func TestHTTPSenderProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	s := NewHTTPSender(HTTPConfig{BaseURL: server.URL})

	if _, err := s.Send(context.Background(), testMessage()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestHTTPSenderRejectedMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid recipient"})
	}))
	defer server.Close()

	s := NewHTTPSender(HTTPConfig{BaseURL: server.URL})

	if _, err := s.Send(context.Background(), testMessage()); err == nil {
		t.Fatal("expected error for rejected message")
	}
}

func TestHTTPSenderUnparseableAck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	s := NewHTTPSender(HTTPConfig{BaseURL: server.URL})

	result, err := s.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("accepted but unparseable ack should not error: %v", err)
	}
	if result.MessageID != "" {
		t.Errorf("expected empty message ID, got %s", result.MessageID)
	}
}

func TestMockSenderRespectsSuccessRate(t *testing.T) {
	s := NewMockSender(1.0)

	result, err := s.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("success rate 1.0 should never fail: %v", err)
	}
	if result.MessageID == "" {
		t.Error("expected a message ID")
	}
}

func TestMockSenderHonorsContext(t *testing.T) {
	s := NewMockSender(1.0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Send(ctx, testMessage()); err == nil {
		t.Fatal("expected context error")
	}
}

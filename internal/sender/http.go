package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpSender posts messages to an email-delivery API as JSON.
type httpSender struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// HTTPConfig holds transport configuration for the real provider.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPSender creates a provider-backed transport
func NewHTTPSender(cfg HTTPConfig) Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &httpSender{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send posts one message and parses the acknowledgment
func (s *httpSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshaling message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Accepted but unparseable ack: the send still happened.
		return &Result{}, nil
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("provider rejected message: %s", parsed.Error)
	}

	return &Result{MessageID: parsed.MessageID}, nil
}

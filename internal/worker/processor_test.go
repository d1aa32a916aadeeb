package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/coldreach/campaign-backend/internal/dispatch"
	"github.com/coldreach/campaign-backend/internal/models"
)

// mockRunner records what the processor asked it to run.
type mockRunner struct {
	campaigns []dispatch.CampaignParams
	chunks    []dispatch.ChunkParams
	err       error
}

func (m *mockRunner) RunCampaign(ctx context.Context, params dispatch.CampaignParams) (dispatch.Stats, error) {
	m.campaigns = append(m.campaigns, params)
	return dispatch.Stats{}, m.err
}

func (m *mockRunner) RunChunk(ctx context.Context, params dispatch.ChunkParams) (dispatch.Stats, error) {
	m.chunks = append(m.chunks, params)
	return dispatch.Stats{}, m.err
}

type mockSenderLister struct {
	senders []models.Sender
	err     error
}

func (m *mockSenderLister) List(ctx context.Context) ([]models.Sender, error) {
	return m.senders, m.err
}

func newTestProcessor(runner *mockRunner, lister *mockSenderLister) *Processor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProcessor(runner, lister, logger)
}

func TestProcessRunCampaignJob(t *testing.T) {
	runner := &mockRunner{}
	lister := &mockSenderLister{senders: []models.Sender{{Email: "a@x.com"}}}
	processor := newTestProcessor(runner, lister)

	payload, _ := json.Marshal(models.CampaignJobPayload{
		CampaignID:   "c1",
		CampaignName: "launch",
		Subject:      "s",
		Body:         "b",
		Recipients:   []models.Recipient{{Email: "r@dest.com"}},
	})
	job := &models.Job{ID: "j1", CampaignID: "c1", Type: models.JobTypeRunCampaign, Payload: payload}

	if err := processor.Process(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runner.campaigns) != 1 {
		t.Fatalf("expected one campaign run, got %d", len(runner.campaigns))
	}
	got := runner.campaigns[0]
	if got.CampaignID != "c1" || len(got.Recipients) != 1 {
		t.Errorf("unexpected params: %+v", got)
	}
	// Whole-campaign jobs load the pool from the repository.
	if len(got.Senders) != 1 || got.Senders[0].Email != "a@x.com" {
		t.Errorf("sender pool not loaded: %+v", got.Senders)
	}
}

func TestProcessChunkJob(t *testing.T) {
	runner := &mockRunner{}
	processor := newTestProcessor(runner, &mockSenderLister{})

	payload, _ := json.Marshal(models.ChunkJobPayload{
		CampaignID:  "c1",
		ChunkIndex:  2,
		TotalChunks: 5,
		StartIndex:  20,
		Recipients:  []models.Recipient{{Email: "r@dest.com"}},
		Senders:     []models.Sender{{Email: "a@x.com"}},
	})
	job := &models.Job{ID: "j1", CampaignID: "c1", Type: models.JobTypeProcessChunk, Payload: payload}

	if err := processor.Process(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runner.chunks) != 1 {
		t.Fatalf("expected one chunk run, got %d", len(runner.chunks))
	}
	got := runner.chunks[0]
	if got.StartIndex != 20 || got.ChunkIndex != 2 || got.TotalChunks != 5 {
		t.Errorf("chunk coordinates lost: %+v", got)
	}
	// Chunk jobs carry their pool inside the payload.
	if len(got.Senders) != 1 {
		t.Errorf("embedded sender pool lost: %+v", got.Senders)
	}
}

func TestProcessRunnerErrorPropagatesForRetry(t *testing.T) {
	runner := &mockRunner{err: errors.New("transient")}
	lister := &mockSenderLister{senders: []models.Sender{{Email: "a@x.com"}}}
	processor := newTestProcessor(runner, lister)

	payload, _ := json.Marshal(models.CampaignJobPayload{CampaignID: "c1"})
	job := &models.Job{ID: "j1", Type: models.JobTypeRunCampaign, Payload: payload}

	if err := processor.Process(context.Background(), job); err == nil {
		t.Error("runner errors must propagate so the queue can retry")
	}
}

func TestProcessMalformedPayloadIsDropped(t *testing.T) {
	runner := &mockRunner{}
	processor := newTestProcessor(runner, &mockSenderLister{})

	job := &models.Job{ID: "j1", Type: models.JobTypeRunCampaign, Payload: []byte("{not json")}

	// Retrying a malformed payload cannot succeed; it must not bounce.
	if err := processor.Process(context.Background(), job); err != nil {
		t.Errorf("expected malformed payload to be dropped, got %v", err)
	}
	if len(runner.campaigns) != 0 {
		t.Error("malformed payload reached the runner")
	}
}

func TestProcessUnknownJobTypeIsDropped(t *testing.T) {
	runner := &mockRunner{}
	processor := newTestProcessor(runner, &mockSenderLister{})

	job := &models.Job{ID: "j1", Type: "mystery", Payload: []byte("{}")}

	if err := processor.Process(context.Background(), job); err != nil {
		t.Errorf("unknown job type should be dropped, got %v", err)
	}
	if len(runner.campaigns) != 0 || len(runner.chunks) != 0 {
		t.Error("unknown job type reached the runner")
	}
}

package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/coldreach/campaign-backend/internal/models"
	"github.com/coldreach/campaign-backend/internal/repository"
)

// SenderService manages the verified sender pool.
type SenderService interface {
	Create(ctx context.Context, sender *models.Sender) error
	List(ctx context.Context) ([]models.Sender, error)
	Delete(ctx context.Context, email string) error
}

type senderService struct {
	senders repository.SenderRepository
	logger  *slog.Logger
}

// NewSenderService creates a new sender service
func NewSenderService(senders repository.SenderRepository, logger *slog.Logger) SenderService {
	return &senderService{senders: senders, logger: logger}
}

// Create validates and registers a sender
func (s *senderService) Create(ctx context.Context, sender *models.Sender) error {
	sender.Email = strings.ToLower(strings.TrimSpace(sender.Email))
	sender.DisplayName = strings.TrimSpace(sender.DisplayName)

	if err := sender.Validate(); err != nil {
		return err
	}

	if err := s.senders.Create(ctx, sender); err != nil {
		return err
	}

	s.logger.Info("sender registered",
		slog.String("email", sender.Email),
		slog.String("domain", sender.Domain()),
	)
	return nil
}

// List returns the whole sender pool
func (s *senderService) List(ctx context.Context) ([]models.Sender, error) {
	return s.senders.List(ctx)
}

// Delete removes a sender from the pool
func (s *senderService) Delete(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.ErrInvalidInput("email is required")
	}
	return s.senders.Delete(ctx, email)
}

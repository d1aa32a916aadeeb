package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coldreach/campaign-backend/internal/models"
	"github.com/coldreach/campaign-backend/internal/service"
)

// SenderHandler handles sender pool HTTP requests
type SenderHandler struct {
	senderService service.SenderService
	logger        *slog.Logger
}

// NewSenderHandler creates a new sender handler
func NewSenderHandler(senderService service.SenderService, logger *slog.Logger) *SenderHandler {
	return &SenderHandler{
		senderService: senderService,
		logger:        logger,
	}
}

// CreateSender handles POST /senders
func (h *SenderHandler) CreateSender(w http.ResponseWriter, r *http.Request) {
	var sender models.Sender

	if err := json.NewDecoder(r.Body).Decode(&sender); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if err := h.senderService.Create(r.Context(), &sender); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, sender)
}

// ListSenders handles GET /senders
func (h *SenderHandler) ListSenders(w http.ResponseWriter, r *http.Request) {
	senders, err := h.senderService.List(r.Context())
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, map[string]interface{}{"senders": senders})
}

// DeleteSender handles DELETE /senders/{email}
func (h *SenderHandler) DeleteSender(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	if err := h.senderService.Delete(r.Context(), email); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

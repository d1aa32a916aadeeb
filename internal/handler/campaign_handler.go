package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coldreach/campaign-backend/internal/models"
	"github.com/coldreach/campaign-backend/internal/service"
)

// CampaignHandler handles campaign HTTP requests
type CampaignHandler struct {
	campaignService service.CampaignService
	logger          *slog.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignService service.CampaignService, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		logger:          logger,
	}
}

// StartCampaign handles POST /campaigns
func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.StartCampaignRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	result, err := h.campaignService.Start(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	// Dispatch continues after this response returns.
	respondAccepted(w, result)
}

// ListCampaigns handles GET /campaigns
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	filter := models.CampaignFilter{
		UserID:   query.Get("user_id"),
		Status:   query.Get("status"),
		Page:     page,
		PageSize: pageSize,
	}

	result, err := h.campaignService.List(r.Context(), filter)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// GetCampaign handles GET /campaigns/{id}
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	campaign, err := h.campaignService.GetStatus(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}

// StopCampaign handles POST /campaigns/{id}/stop
func (h *CampaignHandler) StopCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	campaign, err := h.campaignService.Stop(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}

// ListCampaignEmails handles GET /campaigns/{id}/emails
func (h *CampaignHandler) ListCampaignEmails(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	filter := models.EmailLogFilter{
		CampaignID: chi.URLParam(r, "id"),
		Status:     query.Get("status"),
		Page:       page,
		PageSize:   pageSize,
	}

	result, err := h.campaignService.ListEmails(r.Context(), filter)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// PreviewCampaign handles POST /campaigns/preview
func (h *CampaignHandler) PreviewCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.PreviewRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	result, err := h.campaignService.Preview(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// GetStats handles GET /campaigns/stats
func (h *CampaignHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.campaignService.Stats(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, stats)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"vibetravels/internal/app"
	"vibetravels/internal/auth"
	"vibetravels/internal/logger"
	"vibetravels/internal/repository/db"
	generationService "vibetravels/internal/service/generation"
	limiterService "vibetravels/internal/service/limiter"
	reaperService "vibetravels/internal/service/reaper"
	"vibetravels/pkg/validation"

	"github.com/sirupsen/logrus"
)

// Request/Response types

type GenerateRequest struct {
	Preferences map[string]any `json:"preferences,omitempty"`
}

type AttemptResponse struct {
	ID           string  `json:"id"`
	TravelPlanID string  `json:"travel_plan_id"`
	Status       string  `json:"status"`
	ModelUsed    string  `json:"model_used,omitempty"`
	TokensUsed   int     `json:"tokens_used,omitempty"`
	CostEstimate float64 `json:"cost_estimate,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
	StartedAt    string  `json:"started_at,omitempty"`
	CompletedAt  string  `json:"completed_at,omitempty"`
}

type CleanupResponse struct {
	DryRun     bool              `json:"dry_run"`
	Candidates []AttemptResponse `json:"candidates"`
	Reaped     int               `json:"reaped"`
}

type ResetResponse struct {
	Message string         `json:"message"`
	Counts  map[string]int `json:"counts"`
}

type ErrorBody struct {
	Error  string            `json:"error"`
	Code   int               `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// GenerationHandlers exposes the generation pipeline over HTTP
type GenerationHandlers struct {
	config     *app.Config
	generation *generationService.GenerationService
	limiter    *limiterService.LimiterService
	reaper     *reaperService.ReaperService
}

// NewGenerationHandlers creates a new GenerationHandlers
func NewGenerationHandlers(config *app.Config, generation *generationService.GenerationService,
	limiter *limiterService.LimiterService, reaper *reaperService.ReaperService) *GenerationHandlers {
	return &GenerationHandlers{
		config:     config,
		generation: generation,
		limiter:    limiter,
		reaper:     reaper,
	}
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func sendErrorBody(w http.ResponseWriter, status int, message string, fields map[string]string) {
	sendJSON(w, status, ErrorBody{Error: message, Code: status, Fields: fields})
}

func attemptToResponse(attempt *db.GenerationAttempt) AttemptResponse {
	resp := AttemptResponse{
		ID:           attempt.ID,
		TravelPlanID: attempt.TravelPlanID,
		Status:       attempt.Status,
		ModelUsed:    attempt.ModelUsed,
		TokensUsed:   attempt.TokensUsed,
		CostEstimate: attempt.CostEstimate,
		ErrorMessage: attempt.ErrorMessage,
		CreatedAt:    attempt.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if attempt.StartedAt != nil {
		resp.StartedAt = attempt.StartedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if attempt.CompletedAt != nil {
		resp.CompletedAt = attempt.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// GenerateHandler handles POST /api/plans/{id}/generate
func (h *GenerationHandlers) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		sendErrorBody(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	planID := r.PathValue("id")
	if planID == "" {
		sendErrorBody(w, http.StatusBadRequest, "Plan id is required", nil)
		return
	}

	var req GenerateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendErrorBody(w, http.StatusBadRequest, "Invalid request body", nil)
			return
		}
	}

	attempt, err := h.generation.RequestGeneration(userID, planID, req.Preferences)
	if err != nil {
		h.sendGenerationError(w, err)
		return
	}

	sendJSON(w, http.StatusAccepted, attemptToResponse(attempt))
}

func (h *GenerationHandlers) sendGenerationError(w http.ResponseWriter, err error) {
	var validationErr *validation.ValidationError
	var limitErr *limiterService.LimitExceededError

	switch {
	case errors.As(err, &validationErr):
		sendErrorBody(w, http.StatusUnprocessableEntity, "Invalid preferences", validationErr.Fields)
	case errors.As(err, &limitErr):
		sendErrorBody(w, http.StatusTooManyRequests, limitErr.Error(), nil)
	case errors.Is(err, db.ErrAttemptInFlight):
		sendErrorBody(w, http.StatusConflict, "Generation already in progress for this plan", nil)
	case errors.Is(err, generationService.ErrPlanNotFound):
		sendErrorBody(w, http.StatusNotFound, "Travel plan not found", nil)
	case errors.Is(err, generationService.ErrNotPlanOwner):
		sendErrorBody(w, http.StatusForbidden, "You do not own this travel plan", nil)
	case errors.Is(err, generationService.ErrPlanNotGenerable):
		sendErrorBody(w, http.StatusConflict, "Travel plan is completed or cancelled", nil)
	default:
		logger.Log.WithField("error", err.Error()).Error("Generation request failed")
		sendErrorBody(w, http.StatusInternalServerError, "Failed to request generation", nil)
	}
}

// AttemptStatusHandler handles GET /api/plans/{id}/generation
func (h *GenerationHandlers) AttemptStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		sendErrorBody(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	attempt, err := h.generation.GetAttemptStatus(userID, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, generationService.ErrPlanNotFound), errors.Is(err, db.ErrNotFound):
			sendErrorBody(w, http.StatusNotFound, "No generation found for this plan", nil)
		case errors.Is(err, generationService.ErrNotPlanOwner):
			sendErrorBody(w, http.StatusForbidden, "You do not own this travel plan", nil)
		default:
			sendErrorBody(w, http.StatusInternalServerError, "Failed to load generation status", nil)
		}
		return
	}

	sendJSON(w, http.StatusOK, attemptToResponse(attempt))
}

// LimitInfoHandler handles GET /api/limits
func (h *GenerationHandlers) LimitInfoHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		sendErrorBody(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	info, err := h.limiter.GetLimitInfo(userID)
	if err != nil {
		sendErrorBody(w, http.StatusInternalServerError, "Failed to load limit info", nil)
		return
	}

	sendJSON(w, http.StatusOK, info)
}

// CleanupHandler handles POST /api/admin/generations/cleanup?dry_run=true
func (h *GenerationHandlers) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"

	result, err := h.reaper.Sweep(dryRun)
	if err != nil {
		sendErrorBody(w, http.StatusInternalServerError, "Cleanup sweep failed", nil)
		return
	}

	resp := CleanupResponse{DryRun: result.DryRun, Reaped: result.Reaped}
	for i := range result.Candidates {
		resp.Candidates = append(resp.Candidates, attemptToResponse(&result.Candidates[i]))
	}

	logger.Log.WithFields(logrus.Fields{
		"dry_run":    dryRun,
		"candidates": len(result.Candidates),
		"reaped":     result.Reaped,
	}).Info("Cleanup sweep requested via API")

	sendJSON(w, http.StatusOK, resp)
}

// ResetLimitsHandler handles POST /api/admin/limits/reset. Limits are derived
// from the attempt log, so this reports the current counts and mutates
// nothing.
func (h *GenerationHandlers) ResetLimitsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := h.limiter.ReportMonthlyCounts()
	if err != nil {
		sendErrorBody(w, http.StatusInternalServerError, "Failed to report monthly counts", nil)
		return
	}

	sendJSON(w, http.StatusOK, ResetResponse{
		Message: "Monthly limits are derived from the attempt log; nothing to reset",
		Counts:  counts,
	})
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"vibetravels/internal/auth"
	"vibetravels/internal/repository/db"
	"vibetravels/pkg/validation"
)

type CreatePlanRequest struct {
	Title         string  `json:"title"`
	Destination   string  `json:"destination"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	TravelerCount int     `json:"traveler_count"`
	Budget        float64 `json:"budget"`
}

type PlanResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Destination   string  `json:"destination"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	TravelerCount int     `json:"traveler_count"`
	Budget        float64 `json:"budget"`
	Status        string  `json:"status"`
	HasAIPlan     bool    `json:"has_ai_plan"`
}

type PreferencesResponse struct {
	Interests     []string `json:"interests"`
	Pace          string   `json:"pace"`
	BudgetLevel   string   `json:"budget_level"`
	Transport     string   `json:"transport"`
	Dietary       string   `json:"dietary,omitempty"`
	Accessibility string   `json:"accessibility,omitempty"`
}

func planToResponse(plan *db.TravelPlan) PlanResponse {
	return PlanResponse{
		ID:            plan.ID,
		Title:         plan.Title,
		Destination:   plan.Destination,
		StartDate:     plan.StartDate.Format("2006-01-02"),
		EndDate:       plan.EndDate.Format("2006-01-02"),
		TravelerCount: plan.TravelerCount,
		Budget:        plan.Budget,
		Status:        plan.Status,
		HasAIPlan:     plan.HasAIPlan,
	}
}

// CreatePlanHandler handles POST /api/plans
func (h *GenerationHandlers) CreatePlanHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		sendErrorBody(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorBody(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	fields := make(map[string]string)
	if req.Destination == "" {
		fields["destination"] = "destination is required"
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		fields["start_date"] = "must be a YYYY-MM-DD date"
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		fields["end_date"] = "must be a YYYY-MM-DD date"
	} else if len(fields) == 0 && endDate.Before(startDate) {
		fields["end_date"] = "must not be before start_date"
	}
	if len(fields) > 0 {
		sendErrorBody(w, http.StatusUnprocessableEntity, "Invalid travel plan", fields)
		return
	}

	travelerCount := req.TravelerCount
	if travelerCount <= 0 {
		travelerCount = 1
	}
	title := req.Title
	if title == "" {
		title = "Trip to " + req.Destination
	}

	plan, err := h.config.DB.CreateTravelPlan(&db.TravelPlan{
		UserID:        userID,
		Title:         title,
		Destination:   req.Destination,
		StartDate:     startDate,
		EndDate:       endDate,
		TravelerCount: travelerCount,
		Budget:        req.Budget,
	})
	if err != nil {
		sendErrorBody(w, http.StatusInternalServerError, "Failed to create travel plan", nil)
		return
	}

	sendJSON(w, http.StatusCreated, planToResponse(plan))
}

// GetPlanHandler handles GET /api/plans/{id}
func (h *GenerationHandlers) GetPlanHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		sendErrorBody(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	plan, err := h.config.DB.GetTravelPlan(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			sendErrorBody(w, http.StatusNotFound, "Travel plan not found", nil)
			return
		}
		sendErrorBody(w, http.StatusInternalServerError, "Failed to load travel plan", nil)
		return
	}
	if plan.UserID != userID {
		sendErrorBody(w, http.StatusForbidden, "You do not own this travel plan", nil)
		return
	}

	sendJSON(w, http.StatusOK, planToResponse(plan))
}

// GetPreferencesHandler handles GET /api/preferences
func (h *GenerationHandlers) GetPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		sendErrorBody(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	pref, err := h.config.DB.GetUserPreference(userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			sendErrorBody(w, http.StatusNotFound, "No preferences saved yet", nil)
			return
		}
		sendErrorBody(w, http.StatusInternalServerError, "Failed to load preferences", nil)
		return
	}

	sendJSON(w, http.StatusOK, PreferencesResponse{
		Interests:     pref.Interests,
		Pace:          pref.Pace,
		BudgetLevel:   pref.BudgetLevel,
		Transport:     pref.Transport,
		Dietary:       pref.Dietary,
		Accessibility: pref.Accessibility,
	})
}

// UpdatePreferencesHandler handles PUT /api/preferences
func (h *GenerationHandlers) UpdatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		sendErrorBody(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		sendErrorBody(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	prefs, err := validation.NewPreferencesValidator().Normalize(raw)
	if err != nil {
		var validationErr *validation.ValidationError
		if errors.As(err, &validationErr) {
			sendErrorBody(w, http.StatusUnprocessableEntity, "Invalid preferences", validationErr.Fields)
			return
		}
		sendErrorBody(w, http.StatusInternalServerError, "Failed to validate preferences", nil)
		return
	}

	saved, err := h.config.DB.UpsertUserPreference(&db.UserPreference{
		UserID:        userID,
		Interests:     prefs.Interests,
		Pace:          prefs.Pace,
		BudgetLevel:   prefs.BudgetLevel,
		Transport:     prefs.Transport,
		Dietary:       prefs.Dietary,
		Accessibility: prefs.Accessibility,
	})
	if err != nil {
		sendErrorBody(w, http.StatusInternalServerError, "Failed to save preferences", nil)
		return
	}

	sendJSON(w, http.StatusOK, PreferencesResponse{
		Interests:     saved.Interests,
		Pace:          saved.Pace,
		BudgetLevel:   saved.BudgetLevel,
		Transport:     saved.Transport,
		Dietary:       saved.Dietary,
		Accessibility: saved.Accessibility,
	})
}

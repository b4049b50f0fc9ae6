package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vibetravels/internal/app"
	"vibetravels/internal/logger"
	"vibetravels/internal/repository/db"
	"vibetravels/internal/service/limiter"
	"vibetravels/internal/service/llm"
	"vibetravels/pkg/validation"

	"github.com/sirupsen/logrus"
)

// Request-time errors surfaced synchronously, never enqueued
var (
	ErrPlanNotFound     = errors.New("travel plan not found")
	ErrNotPlanOwner     = errors.New("user does not own this travel plan")
	ErrPlanNotGenerable = errors.New("travel plan is completed or cancelled")
)

// JobPayload is the queue message a worker executes. The preferences snapshot
// is pinned at enqueue time; the executor never re-reads the profile.
type JobPayload struct {
	TravelPlanID string                 `json:"travel_plan_id"`
	UserID       string                 `json:"user_id"`
	AttemptID    string                 `json:"attempt_id"`
	Preferences  validation.Preferences `json:"user_preferences"`
}

// GenerationService orchestrates the itinerary generation pipeline:
// validation, slot reservation, enqueueing, and job execution.
type GenerationService struct {
	db        db.Database
	config    *app.Config
	aiClient  llm.AIClient
	limiter   *limiter.LimiterService
	validator *validation.PreferencesValidator
	now       func() time.Time
}

// NewGenerationService creates a new GenerationService
func NewGenerationService(appConfig *app.Config, aiClient llm.AIClient, limiterService *limiter.LimiterService) *GenerationService {
	return &GenerationService{
		db:        appConfig.DB,
		config:    appConfig,
		aiClient:  aiClient,
		limiter:   limiterService,
		validator: validation.NewPreferencesValidator(),
		now:       time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *GenerationService) WithClock(now func() time.Time) *GenerationService {
	s.now = now
	return s
}

// RequestGeneration is the synchronous entry point: it validates input,
// reserves a monthly slot and enqueues the generation job. Limit and
// validation errors surface here and never touch the queue. If enqueueing
// fails after the slot was reserved, the slot is rolled back.
func (s *GenerationService) RequestGeneration(userID, planID string, rawPrefs map[string]any) (*db.GenerationAttempt, error) {
	plan, err := s.db.GetTravelPlan(planID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to load travel plan: %w", err)
	}
	if plan.UserID != userID {
		return nil, ErrNotPlanOwner
	}
	if plan.Status == db.PlanCompleted || plan.Status == db.PlanCancelled {
		return nil, ErrPlanNotGenerable
	}

	prefs, err := s.resolvePreferences(userID, rawPrefs)
	if err != nil {
		return nil, err
	}

	attempt, err := s.limiter.ReserveSlot(userID, planID)
	if err != nil {
		return nil, err
	}

	payload := JobPayload{
		TravelPlanID: planID,
		UserID:       userID,
		AttemptID:    attempt.ID,
		Preferences:  *prefs,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.rollbackSlot(attempt.ID)
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}

	if _, err := s.db.EnqueueJob(attempt.ID, data, s.config.AppConfig.Worker.MaxJobAttempts); err != nil {
		s.rollbackSlot(attempt.ID)
		return nil, fmt.Errorf("failed to enqueue generation job: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"plan_id":    planID,
		"user_id":    userID,
	}).Info("Generation requested")

	return attempt, nil
}

// resolvePreferences normalizes the request payload, falling back to the
// stored profile (or defaults) when the request carries none
func (s *GenerationService) resolvePreferences(userID string, rawPrefs map[string]any) (*validation.Preferences, error) {
	if len(rawPrefs) > 0 {
		return s.validator.Normalize(rawPrefs)
	}

	stored, err := s.db.GetUserPreference(userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return s.validator.Normalize(nil)
		}
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	return &validation.Preferences{
		Interests:     stored.Interests,
		Pace:          stored.Pace,
		BudgetLevel:   stored.BudgetLevel,
		Transport:     stored.Transport,
		Dietary:       stored.Dietary,
		Accessibility: stored.Accessibility,
	}, nil
}

func (s *GenerationService) rollbackSlot(attemptID string) {
	if err := s.limiter.Rollback(attemptID); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"attempt_id": attemptID,
			"error":      err.Error(),
		}).Error("Failed to roll back reserved slot")
	}
}

// GetAttemptStatus returns the latest attempt for a plan, with ownership check
func (s *GenerationService) GetAttemptStatus(userID, planID string) (*db.GenerationAttempt, error) {
	plan, err := s.db.GetTravelPlan(planID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to load travel plan: %w", err)
	}
	if plan.UserID != userID {
		return nil, ErrNotPlanOwner
	}

	return s.db.GetLatestAttemptForPlan(planID)
}

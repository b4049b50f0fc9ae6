package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vibetravels/internal/logger"
	"vibetravels/internal/repository/db"
	"vibetravels/internal/service/llm"
	"vibetravels/pkg/validation"

	"github.com/sirupsen/logrus"
)

const requestTypeItinerary = "itinerary_generation"

// ExecuteAttempt runs one generation job on a worker: mark processing, call
// the model against the schema contract, persist the itinerary and record the
// terminal state. Every model call leaves a usage log row, success or failure.
// On error the attempt stays processing and the error is returned so the
// queue's retry policy decides what happens next; persistence is
// replace-not-append, so a retried attempt never duplicates itinerary rows.
func (s *GenerationService) ExecuteAttempt(ctx context.Context, payload JobPayload) error {
	startedAt := s.now()
	if err := s.db.MarkAttemptProcessing(payload.AttemptID, startedAt); err != nil {
		return fmt.Errorf("failed to mark attempt processing: %w", err)
	}

	plan, err := s.db.GetTravelPlan(payload.TravelPlanID)
	if err != nil {
		return s.failCall(payload, "", fmt.Errorf("failed to load travel plan: %w", err))
	}

	req := llm.GenerationRequest{
		SystemPrompt: s.config.AppConfig.LLM.SystemPrompt,
		UserPrompt:   buildUserPrompt(plan, &payload.Preferences),
		Schema:       llm.ItinerarySchemaJSON(),
		MaxTokens:    s.config.AppConfig.LLM.MaxTokens,
		Temperature:  s.config.AppConfig.LLM.Temperature,
		Destination:  plan.Destination,
		DurationDays: plan.DurationDays(),
		StartDate:    plan.StartDate,
		Budget:       plan.Budget,
	}

	result, err := s.aiClient.GenerateItinerary(ctx, req)
	if err != nil {
		return s.failCall(payload, s.aiClient.DefaultModel(), err)
	}

	days := buildPlanDays(plan, result.Itinerary)
	if err := s.db.ReplaceItinerary(plan.ID, days); err != nil {
		return s.failCall(payload, result.Model, fmt.Errorf("failed to store itinerary: %w", err))
	}
	if err := s.db.UpdateTravelPlanStatus(plan.ID, db.PlanPlanned); err != nil {
		return s.failCall(payload, result.Model, fmt.Errorf("failed to update plan status: %w", err))
	}

	completedAt := s.now()
	if err := s.db.MarkAttemptCompleted(payload.AttemptID, result.Model, result.TotalTokens, result.EstimatedCost, completedAt); err != nil {
		return fmt.Errorf("failed to mark attempt completed: %w", err)
	}

	if _, err := s.db.AddUsageLog(&db.UsageLog{
		UserID:           payload.UserID,
		AttemptID:        payload.AttemptID,
		RequestType:      requestTypeItinerary,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		Cost:             result.EstimatedCost,
	}); err != nil {
		// The itinerary is stored and the attempt is terminal; a lost usage
		// row is not worth failing the job over
		logger.Log.WithField("attempt_id", payload.AttemptID).Error("Failed to write usage log")
	}

	logger.Log.WithFields(logrus.Fields{
		"attempt_id": payload.AttemptID,
		"plan_id":    plan.ID,
		"model":      result.Model,
		"tokens":     result.TotalTokens,
		"cost":       result.EstimatedCost,
		"duration":   completedAt.Sub(startedAt).String(),
	}).Info("Generation completed")

	return nil
}

// failCall records a zero-metric usage log for a failed execution and returns
// the error for the queue's retry policy. The attempt itself transitions to
// failed only once, via FailAttempt, when the job is declared dead.
func (s *GenerationService) failCall(payload JobPayload, model string, cause error) error {
	if _, err := s.db.AddUsageLog(&db.UsageLog{
		UserID:       payload.UserID,
		AttemptID:    payload.AttemptID,
		RequestType:  requestTypeItinerary,
		Model:        model,
		ErrorMessage: cause.Error(),
	}); err != nil {
		logger.Log.WithField("attempt_id", payload.AttemptID).Error("Failed to write failure usage log")
	}

	logger.Log.WithFields(logrus.Fields{
		"attempt_id": payload.AttemptID,
		"error":      cause.Error(),
	}).Warn("Generation execution failed")

	return cause
}

// FailAttempt sets the attempt's terminal failed state. Called when the
// queue declares the job dead; the plan keeps its prior status.
func (s *GenerationService) FailAttempt(attemptID, errorMessage string) error {
	return s.db.MarkAttemptFailed(attemptID, errorMessage, s.now())
}

// buildUserPrompt renders the travel plan and preferences snapshot into the
// user message
func buildUserPrompt(plan *db.TravelPlan, prefs *validation.Preferences) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Plan a trip to %s.\n", plan.Destination)
	fmt.Fprintf(&b, "Dates: %s to %s (%d days).\n",
		plan.StartDate.Format("2006-01-02"), plan.EndDate.Format("2006-01-02"), plan.DurationDays())
	fmt.Fprintf(&b, "Travelers: %d.\n", plan.TravelerCount)
	if plan.Budget > 0 {
		fmt.Fprintf(&b, "Total budget: %.2f.\n", plan.Budget)
	}

	fmt.Fprintf(&b, "Pace: %s. Budget level: %s. Transport: %s.\n",
		prefs.Pace, prefs.BudgetLevel, prefs.Transport)
	if len(prefs.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s.\n", strings.Join(prefs.Interests, ", "))
	}
	if prefs.Dietary != "" {
		fmt.Fprintf(&b, "Dietary restrictions: %s.\n", prefs.Dietary)
	}
	if prefs.Accessibility != "" {
		fmt.Fprintf(&b, "Accessibility needs: %s.\n", prefs.Accessibility)
	}

	fmt.Fprintf(&b, "Use date %s for day 1 and number days consecutively.",
		plan.StartDate.Format("2006-01-02"))

	return b.String()
}

// buildPlanDays maps the model's itinerary onto persistence records
func buildPlanDays(plan *db.TravelPlan, itinerary *llm.Itinerary) []db.PlanDay {
	days := make([]db.PlanDay, 0, len(itinerary.Days))
	for _, day := range itinerary.Days {
		date, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			// The parsed itinerary already passed schema validation; fall
			// back to the plan's own calendar if a date slips through
			date = plan.StartDate.AddDate(0, 0, day.DayNumber-1)
		}

		record := db.PlanDay{
			TravelPlanID: plan.ID,
			DayNumber:    day.DayNumber,
			Date:         date,
			DailyBudget:  day.DailyBudget,
		}
		for i, activity := range day.Activities {
			record.Points = append(record.Points, db.PlanPoint{
				OrderNumber:  i + 1,
				DayPart:      dayPart(activity.Time),
				Name:         activity.Activity,
				Description:  activity.Activity,
				Location:     activity.Location,
				CostEstimate: activity.CostEstimate,
				Category:     activity.Category,
			})
		}
		days = append(days, record)
	}
	return days
}

// dayPart buckets an HH:MM time into morning, afternoon or evening
func dayPart(clock string) string {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "morning"
	}
	switch {
	case t.Hour() < 12:
		return "morning"
	case t.Hour() < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

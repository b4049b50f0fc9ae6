package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"vibetravels/internal/repository/db"
	"vibetravels/internal/service/limiter"
	"vibetravels/internal/service/llm"
	"vibetravels/internal/testutil"
	"vibetravels/pkg/validation"
)

func testPlan() *db.TravelPlan {
	return &db.TravelPlan{
		ID:            "plan-1",
		UserID:        "user-1",
		Title:         "Trip to Paris",
		Destination:   "Paris",
		StartDate:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		TravelerCount: 2,
		Budget:        1500,
		Status:        db.PlanDraft,
	}
}

func newTestService(mockDB *testutil.MockDatabase, aiClient llm.AIClient) *GenerationService {
	cfg := testutil.NewMockConfig(mockDB)
	limiterService := limiter.NewLimiterService(mockDB, cfg.AppConfig.Limits.MonthlyGenerations)
	return NewGenerationService(cfg, aiClient, limiterService)
}

func TestRequestGeneration_Success(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	plan := testPlan()

	mockDB.GetTravelPlanFunc = func(id string) (*db.TravelPlan, error) {
		return plan, nil
	}
	mockDB.GetUserPreferenceFunc = func(userID string) (*db.UserPreference, error) {
		return nil, db.ErrNotFound
	}
	mockDB.ReserveAttemptFunc = func(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
		return &db.GenerationAttempt{ID: "attempt-1", UserID: userID, TravelPlanID: planID, Status: db.AttemptPending}, nil
	}

	var enqueuedPayload []byte
	var enqueuedMax int
	mockDB.EnqueueJobFunc = func(attemptID string, payload []byte, maxAttempts int) (*db.QueuedJob, error) {
		enqueuedPayload = payload
		enqueuedMax = maxAttempts
		return &db.QueuedJob{ID: "job-1", AttemptID: attemptID, Status: db.JobQueued}, nil
	}

	service := newTestService(mockDB, llm.NewMockClient())

	attempt, err := service.RequestGeneration("user-1", "plan-1", nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if attempt.Status != db.AttemptPending {
		t.Errorf("Expected pending attempt, got '%s'", attempt.Status)
	}
	if enqueuedMax != 2 {
		t.Errorf("Expected max attempts 2, got %d", enqueuedMax)
	}

	var payload JobPayload
	if err := json.Unmarshal(enqueuedPayload, &payload); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if payload.AttemptID != "attempt-1" || payload.TravelPlanID != "plan-1" || payload.UserID != "user-1" {
		t.Errorf("Unexpected payload identity fields: %+v", payload)
	}
	// No stored profile, so the snapshot must carry defaults
	if payload.Preferences.Pace != "moderate" {
		t.Errorf("Expected default pace in snapshot, got '%s'", payload.Preferences.Pace)
	}
}

func TestRequestGeneration_SnapshotsRequestPreferences(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	mockDB.GetTravelPlanFunc = func(id string) (*db.TravelPlan, error) {
		return testPlan(), nil
	}
	mockDB.ReserveAttemptFunc = func(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
		return &db.GenerationAttempt{ID: "attempt-1", Status: db.AttemptPending}, nil
	}

	profileReads := 0
	mockDB.GetUserPreferenceFunc = func(userID string) (*db.UserPreference, error) {
		profileReads++
		return &db.UserPreference{UserID: userID, Pace: "relaxed"}, nil
	}

	var payload JobPayload
	mockDB.EnqueueJobFunc = func(attemptID string, data []byte, maxAttempts int) (*db.QueuedJob, error) {
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("Failed to decode payload: %v", err)
		}
		return &db.QueuedJob{ID: "job-1"}, nil
	}

	service := newTestService(mockDB, llm.NewMockClient())

	_, err := service.RequestGeneration("user-1", "plan-1", map[string]any{
		"pace":      "fast",
		"interests": []any{"art"},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Request payload wins over the stored profile
	if profileReads != 0 {
		t.Errorf("Expected stored profile untouched, read %d times", profileReads)
	}
	if payload.Preferences.Pace != "fast" {
		t.Errorf("Expected snapshot pace 'fast', got '%s'", payload.Preferences.Pace)
	}
}

func TestRequestGeneration_PlanChecks(t *testing.T) {
	completedPlan := testPlan()
	completedPlan.Status = db.PlanCompleted

	tests := []struct {
		name    string
		plan    *db.TravelPlan
		planErr error
		userID  string
		wantErr error
	}{
		{"missing plan", nil, db.ErrNotFound, "user-1", ErrPlanNotFound},
		{"foreign plan", testPlan(), nil, "user-2", ErrNotPlanOwner},
		{"completed plan", completedPlan, nil, "user-1", ErrPlanNotGenerable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := &testutil.MockDatabase{
				GetTravelPlanFunc: func(id string) (*db.TravelPlan, error) {
					return tt.plan, tt.planErr
				},
			}
			service := newTestService(mockDB, llm.NewMockClient())

			_, err := service.RequestGeneration(tt.userID, "plan-1", nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestRequestGeneration_LimitExceededNeverEnqueues(t *testing.T) {
	enqueued := false
	mockDB := &testutil.MockDatabase{
		GetTravelPlanFunc: func(id string) (*db.TravelPlan, error) {
			return testPlan(), nil
		},
		GetUserPreferenceFunc: func(userID string) (*db.UserPreference, error) {
			return nil, db.ErrNotFound
		},
		ReserveAttemptFunc: func(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
			return nil, db.ErrMonthlyLimitReached
		},
		CountAttemptsFunc: func(userID string, from, to time.Time) (int, error) {
			return 10, nil
		},
		EnqueueJobFunc: func(attemptID string, payload []byte, maxAttempts int) (*db.QueuedJob, error) {
			enqueued = true
			return nil, nil
		},
	}
	service := newTestService(mockDB, llm.NewMockClient())

	_, err := service.RequestGeneration("user-1", "plan-1", nil)

	var limitErr *limiter.LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("Expected *LimitExceededError, got %T: %v", err, err)
	}
	if enqueued {
		t.Error("Expected no job to be enqueued when the limit is exceeded")
	}
}

func TestRequestGeneration_InvalidPreferencesNeverReserve(t *testing.T) {
	reserved := false
	mockDB := &testutil.MockDatabase{
		GetTravelPlanFunc: func(id string) (*db.TravelPlan, error) {
			return testPlan(), nil
		},
		ReserveAttemptFunc: func(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
			reserved = true
			return nil, nil
		},
	}
	service := newTestService(mockDB, llm.NewMockClient())

	_, err := service.RequestGeneration("user-1", "plan-1", map[string]any{"pace": "warp"})

	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected *ValidationError, got %T: %v", err, err)
	}
	if reserved {
		t.Error("Expected no slot reservation for an invalid payload")
	}
}

func TestRequestGeneration_EnqueueFailureRollsBackSlot(t *testing.T) {
	rolledBack := ""
	mockDB := &testutil.MockDatabase{
		GetTravelPlanFunc: func(id string) (*db.TravelPlan, error) {
			return testPlan(), nil
		},
		GetUserPreferenceFunc: func(userID string) (*db.UserPreference, error) {
			return nil, db.ErrNotFound
		},
		ReserveAttemptFunc: func(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
			return &db.GenerationAttempt{ID: "attempt-1", Status: db.AttemptPending}, nil
		},
		EnqueueJobFunc: func(attemptID string, payload []byte, maxAttempts int) (*db.QueuedJob, error) {
			return nil, errors.New("queue table unavailable")
		},
		DeletePendingAttemptFunc: func(id string) error {
			rolledBack = id
			return nil
		},
	}
	service := newTestService(mockDB, llm.NewMockClient())

	_, err := service.RequestGeneration("user-1", "plan-1", nil)
	if err == nil {
		t.Fatal("Expected error from enqueue failure, got nil")
	}
	if rolledBack != "attempt-1" {
		t.Errorf("Expected attempt-1 rolled back, got '%s'", rolledBack)
	}
}

func TestExecuteAttempt_Success(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	plan := testPlan()

	mockDB.GetTravelPlanFunc = func(id string) (*db.TravelPlan, error) {
		return plan, nil
	}
	mockDB.MarkAttemptProcessingFunc = func(id string, startedAt time.Time) error {
		return nil
	}

	var storedDays []db.PlanDay
	mockDB.ReplaceItineraryFunc = func(planID string, days []db.PlanDay) error {
		storedDays = days
		return nil
	}

	statusSet := ""
	mockDB.UpdateTravelPlanStatusFunc = func(id, status string) error {
		statusSet = status
		return nil
	}

	completed := false
	mockDB.MarkAttemptCompletedFunc = func(id, model string, tokensUsed int, cost float64, completedAt time.Time) error {
		completed = true
		return nil
	}

	var usage *db.UsageLog
	mockDB.AddUsageLogFunc = func(entry *db.UsageLog) (*db.UsageLog, error) {
		usage = entry
		return entry, nil
	}

	service := newTestService(mockDB, llm.NewMockClient())

	payload := JobPayload{
		TravelPlanID: "plan-1",
		UserID:       "user-1",
		AttemptID:    "attempt-1",
		Preferences:  validation.Preferences{Pace: "moderate", BudgetLevel: "standard", Transport: "walk_transit"},
	}
	if err := service.ExecuteAttempt(context.Background(), payload); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(storedDays) != 3 {
		t.Fatalf("Expected 3 itinerary days for a 3-day trip, got %d", len(storedDays))
	}
	if storedDays[0].DayNumber != 1 || len(storedDays[0].Points) == 0 {
		t.Errorf("Expected day 1 with activities, got %+v", storedDays[0])
	}
	if statusSet != db.PlanPlanned {
		t.Errorf("Expected plan status 'planned', got '%s'", statusSet)
	}
	if !completed {
		t.Error("Expected attempt marked completed")
	}
	if usage == nil || usage.ErrorMessage != "" {
		t.Errorf("Expected success usage log, got %+v", usage)
	}
}

func TestExecuteAttempt_ModelFailureLogsUsageButKeepsAttemptAlive(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	mockDB.GetTravelPlanFunc = func(id string) (*db.TravelPlan, error) {
		return testPlan(), nil
	}
	mockDB.MarkAttemptProcessingFunc = func(id string, startedAt time.Time) error {
		return nil
	}

	failedMarked := false
	mockDB.MarkAttemptFailedFunc = func(id, errorMessage string, completedAt time.Time) error {
		failedMarked = true
		return nil
	}

	var usage *db.UsageLog
	mockDB.AddUsageLogFunc = func(entry *db.UsageLog) (*db.UsageLog, error) {
		usage = entry
		return entry, nil
	}

	mockClient := llm.NewMockClient()
	mockClient.FailWith = &llm.AIServiceError{Code: llm.ErrCodeProvider, Message: "upstream 502"}

	service := newTestService(mockDB, mockClient)

	payload := JobPayload{TravelPlanID: "plan-1", UserID: "user-1", AttemptID: "attempt-1"}
	err := service.ExecuteAttempt(context.Background(), payload)
	if err == nil {
		t.Fatal("Expected error to propagate to the queue, got nil")
	}

	var aiErr *llm.AIServiceError
	if !errors.As(err, &aiErr) {
		t.Fatalf("Expected *AIServiceError, got %T: %v", err, err)
	}
	if usage == nil || usage.ErrorMessage == "" {
		t.Errorf("Expected failure usage log with error message, got %+v", usage)
	}
	if usage.TotalTokens != 0 || usage.Cost != 0 {
		t.Errorf("Expected zero-metric usage log on failure, got %+v", usage)
	}
	// Terminal failure is the queue's call, not the executor's
	if failedMarked {
		t.Error("Expected attempt not marked failed on a retryable execution error")
	}
}

func TestFailAttempt(t *testing.T) {
	var gotID, gotMessage string
	mockDB := &testutil.MockDatabase{
		MarkAttemptFailedFunc: func(id, errorMessage string, completedAt time.Time) error {
			gotID, gotMessage = id, errorMessage
			return nil
		},
	}
	service := newTestService(mockDB, llm.NewMockClient())

	if err := service.FailAttempt("attempt-1", "job exhausted retries"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if gotID != "attempt-1" || gotMessage != "job exhausted retries" {
		t.Errorf("Unexpected terminal failure call: id=%s message=%s", gotID, gotMessage)
	}
}

func TestBuildUserPrompt(t *testing.T) {
	plan := testPlan()
	prefs := &validation.Preferences{
		Interests:   []string{"art", "food"},
		Pace:        "relaxed",
		BudgetLevel: "premium",
		Transport:   "mixed",
		Dietary:     "vegan",
	}

	prompt := buildUserPrompt(plan, prefs)

	for _, want := range []string{"Paris", "2025-06-01", "2025-06-03", "3 days", "art, food", "vegan", "relaxed"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q, got:\n%s", want, prompt)
		}
	}
}

func TestDayPart(t *testing.T) {
	tests := []struct {
		clock string
		want  string
	}{
		{"08:00", "morning"},
		{"11:59", "morning"},
		{"12:00", "afternoon"},
		{"17:59", "afternoon"},
		{"18:00", "evening"},
		{"23:30", "evening"},
		{"bogus", "morning"},
	}
	for _, tt := range tests {
		if got := dayPart(tt.clock); got != tt.want {
			t.Errorf("dayPart(%q) = %q, want %q", tt.clock, got, tt.want)
		}
	}
}

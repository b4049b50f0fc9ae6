package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"vibetravels/internal/repository/db"
	"vibetravels/internal/service/generation"
	"vibetravels/internal/service/limiter"
	"vibetravels/internal/service/llm"
	"vibetravels/internal/testutil"
)

func jobPayload() []byte {
	data, _ := json.Marshal(generation.JobPayload{
		TravelPlanID: "plan-1",
		UserID:       "user-1",
		AttemptID:    "attempt-1",
	})
	return data
}

func newTestPool(mockDB *testutil.MockDatabase, aiClient llm.AIClient) *Pool {
	cfg := testutil.NewMockConfig(mockDB)
	limiterService := limiter.NewLimiterService(mockDB, cfg.AppConfig.Limits.MonthlyGenerations)
	service := generation.NewGenerationService(cfg, aiClient, limiterService)
	return NewPool(mockDB, service, cfg.AppConfig.Worker)
}

// fullHappyPathDB mocks everything a successful job execution touches
func fullHappyPathDB() *testutil.MockDatabase {
	plan := &db.TravelPlan{
		ID:          "plan-1",
		UserID:      "user-1",
		Destination: "Oslo",
		StartDate:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
		Status:      db.PlanDraft,
	}
	return &testutil.MockDatabase{
		GetTravelPlanFunc: func(id string) (*db.TravelPlan, error) {
			return plan, nil
		},
		MarkAttemptProcessingFunc: func(id string, startedAt time.Time) error { return nil },
		ReplaceItineraryFunc:      func(planID string, days []db.PlanDay) error { return nil },
		UpdateTravelPlanStatusFunc: func(id, status string) error {
			return nil
		},
		MarkAttemptCompletedFunc: func(id, model string, tokensUsed int, cost float64, completedAt time.Time) error {
			return nil
		},
		AddUsageLogFunc: func(entry *db.UsageLog) (*db.UsageLog, error) { return entry, nil },
	}
}

func TestPool_ProcessesJobToCompletion(t *testing.T) {
	mockDB := fullHappyPathDB()

	var mu sync.Mutex
	completedJob := ""
	delivered := false

	mockDB.DequeueJobFunc = func(now time.Time) (*db.QueuedJob, error) {
		mu.Lock()
		defer mu.Unlock()
		if delivered {
			return nil, nil
		}
		delivered = true
		return &db.QueuedJob{ID: "job-1", AttemptID: "attempt-1", Payload: jobPayload(), Attempts: 1, MaxAttempts: 2}, nil
	}
	mockDB.CompleteJobFunc = func(id string) error {
		mu.Lock()
		defer mu.Unlock()
		completedJob = id
		return nil
	}

	pool := newTestPool(mockDB, llm.NewMockClient())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := pool.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected pool to stop on context deadline, got: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if completedJob != "job-1" {
		t.Errorf("Expected job-1 completed, got '%s'", completedJob)
	}
}

func TestPool_DeadJobMarksAttemptFailed(t *testing.T) {
	mockDB := fullHappyPathDB()

	var mu sync.Mutex
	delivered := false
	failedAttempt := ""
	failedMessage := ""

	mockDB.DequeueJobFunc = func(now time.Time) (*db.QueuedJob, error) {
		mu.Lock()
		defer mu.Unlock()
		if delivered {
			return nil, nil
		}
		delivered = true
		return &db.QueuedJob{ID: "job-1", AttemptID: "attempt-1", Payload: jobPayload(), Attempts: 2, MaxAttempts: 2}, nil
	}
	mockDB.FailJobFunc = func(id, errorMessage string) (bool, error) {
		return false, nil
	}
	mockDB.MarkAttemptFailedFunc = func(id, errorMessage string, completedAt time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		failedAttempt = id
		failedMessage = errorMessage
		return nil
	}

	aiClient := llm.NewMockClient()
	aiClient.FailWith = &llm.AIServiceError{Code: llm.ErrCodeProvider, Message: "upstream down"}

	pool := newTestPool(mockDB, aiClient)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if failedAttempt != "attempt-1" {
		t.Errorf("Expected attempt-1 marked failed, got '%s'", failedAttempt)
	}
	if failedMessage == "" {
		t.Error("Expected failure message recorded on the attempt")
	}
}

func TestPool_RequeuedJobKeepsAttemptAlive(t *testing.T) {
	mockDB := fullHappyPathDB()

	var mu sync.Mutex
	delivered := false
	requeuedJob := ""
	attemptFailed := false

	mockDB.DequeueJobFunc = func(now time.Time) (*db.QueuedJob, error) {
		mu.Lock()
		defer mu.Unlock()
		if delivered {
			return nil, nil
		}
		delivered = true
		return &db.QueuedJob{ID: "job-1", AttemptID: "attempt-1", Payload: jobPayload(), Attempts: 1, MaxAttempts: 2}, nil
	}
	mockDB.FailJobFunc = func(id, errorMessage string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		requeuedJob = id
		return true, nil
	}
	mockDB.MarkAttemptFailedFunc = func(id, errorMessage string, completedAt time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		attemptFailed = true
		return nil
	}

	aiClient := llm.NewMockClient()
	aiClient.FailWith = &llm.AIServiceError{Code: llm.ErrCodeNetwork, Message: "connection reset"}

	pool := newTestPool(mockDB, aiClient)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if requeuedJob != "job-1" {
		t.Errorf("Expected job-1 handed back to the queue, got '%s'", requeuedJob)
	}
	if attemptFailed {
		t.Error("Expected attempt to stay alive while the job can still retry")
	}
}

func TestPool_MalformedPayloadFailsJob(t *testing.T) {
	var mu sync.Mutex
	delivered := false
	failedWith := ""

	mockDB := &testutil.MockDatabase{
		DequeueJobFunc: func(now time.Time) (*db.QueuedJob, error) {
			mu.Lock()
			defer mu.Unlock()
			if delivered {
				return nil, nil
			}
			delivered = true
			return &db.QueuedJob{ID: "job-1", AttemptID: "attempt-1", Payload: []byte("{broken"), Attempts: 1, MaxAttempts: 2}, nil
		},
		FailJobFunc: func(id, errorMessage string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			failedWith = errorMessage
			return true, nil
		},
	}

	pool := newTestPool(mockDB, llm.NewMockClient())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if failedWith == "" {
		t.Fatal("Expected malformed payload to fail the job")
	}
}

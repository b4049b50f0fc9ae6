package testutil

import (
	"context"
	"errors"
	"time"

	"vibetravels/internal/app"
	"vibetravels/internal/config"
	"vibetravels/internal/repository/db"
	"vibetravels/internal/service/llm"
)

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	// User mocks
	GetUserByUsernameFunc func(username string) (*db.User, error)
	CreateUserFunc        func(username, email, password string) (*db.User, error)

	// Travel plan mocks
	GetTravelPlanFunc          func(id string) (*db.TravelPlan, error)
	CreateTravelPlanFunc       func(plan *db.TravelPlan) (*db.TravelPlan, error)
	UpdateTravelPlanStatusFunc func(id, status string) error
	CompletePastPlansFunc      func(now time.Time) (int, error)

	// Preference mocks
	GetUserPreferenceFunc    func(userID string) (*db.UserPreference, error)
	UpsertUserPreferenceFunc func(pref *db.UserPreference) (*db.UserPreference, error)

	// Generation attempt mocks
	GetAttemptFunc              func(id string) (*db.GenerationAttempt, error)
	GetLatestAttemptForPlanFunc func(planID string) (*db.GenerationAttempt, error)
	CountAttemptsFunc           func(userID string, from, to time.Time) (int, error)
	CountAttemptsPerUserFunc    func(from, to time.Time) (map[string]int, error)
	ReserveAttemptFunc          func(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error)
	DeletePendingAttemptFunc    func(id string) error
	MarkAttemptProcessingFunc   func(id string, startedAt time.Time) error
	MarkAttemptCompletedFunc    func(id, model string, tokensUsed int, cost float64, completedAt time.Time) error
	MarkAttemptFailedFunc       func(id, errorMessage string, completedAt time.Time) error
	FindStuckAttemptsFunc       func(olderThan time.Time) ([]db.GenerationAttempt, error)
	FailStuckAttemptsFunc       func(olderThan time.Time, errorMessage string, failedAt time.Time) (int, error)

	// Itinerary mocks
	ReplaceItineraryFunc func(planID string, days []db.PlanDay) error

	// Usage log mocks
	AddUsageLogFunc func(entry *db.UsageLog) (*db.UsageLog, error)

	// Job queue mocks
	EnqueueJobFunc  func(attemptID string, payload []byte, maxAttempts int) (*db.QueuedJob, error)
	DequeueJobFunc  func(now time.Time) (*db.QueuedJob, error)
	CompleteJobFunc func(id string) error
	FailJobFunc     func(id, errorMessage string) (bool, error)
}

// User methods
func (m *MockDatabase) GetUserByUsername(username string) (*db.User, error) {
	if m.GetUserByUsernameFunc != nil {
		return m.GetUserByUsernameFunc(username)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) CreateUser(username, email, password string) (*db.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(username, email, password)
	}
	return nil, errors.New("not implemented")
}

// Travel plan methods
func (m *MockDatabase) GetTravelPlan(id string) (*db.TravelPlan, error) {
	if m.GetTravelPlanFunc != nil {
		return m.GetTravelPlanFunc(id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) CreateTravelPlan(plan *db.TravelPlan) (*db.TravelPlan, error) {
	if m.CreateTravelPlanFunc != nil {
		return m.CreateTravelPlanFunc(plan)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) UpdateTravelPlanStatus(id, status string) error {
	if m.UpdateTravelPlanStatusFunc != nil {
		return m.UpdateTravelPlanStatusFunc(id, status)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) CompletePastPlans(now time.Time) (int, error) {
	if m.CompletePastPlansFunc != nil {
		return m.CompletePastPlansFunc(now)
	}
	return 0, errors.New("not implemented")
}

// Preference methods
func (m *MockDatabase) GetUserPreference(userID string) (*db.UserPreference, error) {
	if m.GetUserPreferenceFunc != nil {
		return m.GetUserPreferenceFunc(userID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) UpsertUserPreference(pref *db.UserPreference) (*db.UserPreference, error) {
	if m.UpsertUserPreferenceFunc != nil {
		return m.UpsertUserPreferenceFunc(pref)
	}
	return nil, errors.New("not implemented")
}

// Generation attempt methods
func (m *MockDatabase) GetAttempt(id string) (*db.GenerationAttempt, error) {
	if m.GetAttemptFunc != nil {
		return m.GetAttemptFunc(id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) GetLatestAttemptForPlan(planID string) (*db.GenerationAttempt, error) {
	if m.GetLatestAttemptForPlanFunc != nil {
		return m.GetLatestAttemptForPlanFunc(planID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) CountAttempts(userID string, from, to time.Time) (int, error) {
	if m.CountAttemptsFunc != nil {
		return m.CountAttemptsFunc(userID, from, to)
	}
	return 0, errors.New("not implemented")
}

func (m *MockDatabase) CountAttemptsPerUser(from, to time.Time) (map[string]int, error) {
	if m.CountAttemptsPerUserFunc != nil {
		return m.CountAttemptsPerUserFunc(from, to)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) ReserveAttempt(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
	if m.ReserveAttemptFunc != nil {
		return m.ReserveAttemptFunc(userID, planID, limit, from, to)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) DeletePendingAttempt(id string) error {
	if m.DeletePendingAttemptFunc != nil {
		return m.DeletePendingAttemptFunc(id)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) MarkAttemptProcessing(id string, startedAt time.Time) error {
	if m.MarkAttemptProcessingFunc != nil {
		return m.MarkAttemptProcessingFunc(id, startedAt)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) MarkAttemptCompleted(id, model string, tokensUsed int, cost float64, completedAt time.Time) error {
	if m.MarkAttemptCompletedFunc != nil {
		return m.MarkAttemptCompletedFunc(id, model, tokensUsed, cost, completedAt)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) MarkAttemptFailed(id, errorMessage string, completedAt time.Time) error {
	if m.MarkAttemptFailedFunc != nil {
		return m.MarkAttemptFailedFunc(id, errorMessage, completedAt)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) FindStuckAttempts(olderThan time.Time) ([]db.GenerationAttempt, error) {
	if m.FindStuckAttemptsFunc != nil {
		return m.FindStuckAttemptsFunc(olderThan)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) FailStuckAttempts(olderThan time.Time, errorMessage string, failedAt time.Time) (int, error) {
	if m.FailStuckAttemptsFunc != nil {
		return m.FailStuckAttemptsFunc(olderThan, errorMessage, failedAt)
	}
	return 0, errors.New("not implemented")
}

// Itinerary methods
func (m *MockDatabase) ReplaceItinerary(planID string, days []db.PlanDay) error {
	if m.ReplaceItineraryFunc != nil {
		return m.ReplaceItineraryFunc(planID, days)
	}
	return errors.New("not implemented")
}

// Usage log methods
func (m *MockDatabase) AddUsageLog(entry *db.UsageLog) (*db.UsageLog, error) {
	if m.AddUsageLogFunc != nil {
		return m.AddUsageLogFunc(entry)
	}
	return nil, errors.New("not implemented")
}

// Job queue methods
func (m *MockDatabase) EnqueueJob(attemptID string, payload []byte, maxAttempts int) (*db.QueuedJob, error) {
	if m.EnqueueJobFunc != nil {
		return m.EnqueueJobFunc(attemptID, payload, maxAttempts)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) DequeueJob(now time.Time) (*db.QueuedJob, error) {
	if m.DequeueJobFunc != nil {
		return m.DequeueJobFunc(now)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) CompleteJob(id string) error {
	if m.CompleteJobFunc != nil {
		return m.CompleteJobFunc(id)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) FailJob(id, errorMessage string) (bool, error) {
	if m.FailJobFunc != nil {
		return m.FailJobFunc(id, errorMessage)
	}
	return false, errors.New("not implemented")
}

// MockAIClient is a mock implementation of llm.AIClient for testing
type MockAIClient struct {
	GenerateItineraryFunc func(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResult, error)
	DefaultModelFunc      func() string
}

func (m *MockAIClient) GenerateItinerary(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResult, error) {
	if m.GenerateItineraryFunc != nil {
		return m.GenerateItineraryFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *MockAIClient) DefaultModel() string {
	if m.DefaultModelFunc != nil {
		return m.DefaultModelFunc()
	}
	return "mock/travel-planner"
}

// NewMockConfig creates a mock app.Config for testing
func NewMockConfig(database db.Database) *app.Config {
	models := config.NewModelsConfigFromList([]config.Model{
		{
			ID:              "mock/travel-planner",
			Name:            "Mock Travel Planner",
			PromptPrice:     0,
			CompletionPrice: 0,
		},
	})

	return app.NewConfig(database, &config.AppConfig{
		LLM: config.LLMConfig{
			Provider:       "mock",
			SystemPrompt:   "You are an expert travel planner.",
			MaxTokens:      4000,
			Temperature:    0.7,
			RequestTimeout: 5 * time.Second,
			MaxRetries:     1,
			RetryBackoff:   time.Millisecond,
		},
		Limits: config.LimitsConfig{
			MonthlyGenerations: 10,
		},
		Worker: config.WorkerConfig{
			Count:          1,
			PollInterval:   time.Millisecond,
			JobTimeout:     5 * time.Second,
			MaxJobAttempts: 2,
			ReaperInterval: time.Minute,
			ReaperBuffer:   time.Minute,
		},
		Models: models,
	})
}

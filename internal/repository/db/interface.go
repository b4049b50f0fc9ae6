package db

import (
	"errors"
	"time"
)

// Sentinel errors returned by Database implementations
var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrMonthlyLimitReached is returned by ReserveAttempt when the user has
	// exhausted the monthly generation quota
	ErrMonthlyLimitReached = errors.New("monthly generation limit reached")
	// ErrAttemptInFlight is returned by ReserveAttempt when an attempt for the
	// same plan is already pending or processing
	ErrAttemptInFlight = errors.New("generation already in progress for this plan")
)

// Database defines the interface for all database operations
// This allows for easier testing through mocking and decouples the services from the specific database implementation
type Database interface {
	// Users
	GetUserByUsername(username string) (*User, error)
	CreateUser(username, email, password string) (*User, error)

	// Travel plans
	GetTravelPlan(id string) (*TravelPlan, error)
	CreateTravelPlan(plan *TravelPlan) (*TravelPlan, error)
	UpdateTravelPlanStatus(id, status string) error
	CompletePastPlans(now time.Time) (int, error)

	// Preferences
	GetUserPreference(userID string) (*UserPreference, error)
	UpsertUserPreference(pref *UserPreference) (*UserPreference, error)

	// Generation attempts
	GetAttempt(id string) (*GenerationAttempt, error)
	GetLatestAttemptForPlan(planID string) (*GenerationAttempt, error)
	CountAttempts(userID string, from, to time.Time) (int, error)
	CountAttemptsPerUser(from, to time.Time) (map[string]int, error)
	ReserveAttempt(userID, planID string, limit int, from, to time.Time) (*GenerationAttempt, error)
	DeletePendingAttempt(id string) error
	MarkAttemptProcessing(id string, startedAt time.Time) error
	MarkAttemptCompleted(id, model string, tokensUsed int, cost float64, completedAt time.Time) error
	MarkAttemptFailed(id, errorMessage string, completedAt time.Time) error
	FindStuckAttempts(olderThan time.Time) ([]GenerationAttempt, error)
	FailStuckAttempts(olderThan time.Time, errorMessage string, failedAt time.Time) (int, error)

	// Itinerary
	ReplaceItinerary(planID string, days []PlanDay) error

	// Usage log
	AddUsageLog(entry *UsageLog) (*UsageLog, error)

	// Job queue
	EnqueueJob(attemptID string, payload []byte, maxAttempts int) (*QueuedJob, error)
	DequeueJob(now time.Time) (*QueuedJob, error)
	CompleteJob(id string) error
	FailJob(id, errorMessage string) (requeued bool, err error)
}

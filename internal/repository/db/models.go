package db

import "time"

// Generation attempt statuses
const (
	AttemptPending    = "pending"
	AttemptProcessing = "processing"
	AttemptCompleted  = "completed"
	AttemptFailed     = "failed"
)

// Travel plan statuses
const (
	PlanDraft     = "draft"
	PlanPlanned   = "planned"
	PlanCompleted = "completed"
	PlanCancelled = "cancelled"
)

// Queue job statuses
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobDead    = "dead"
)

// User represents a user in the database
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// TravelPlan represents a trip a user wants an itinerary for
type TravelPlan struct {
	ID            string
	UserID        string
	Title         string
	Destination   string
	StartDate     time.Time
	EndDate       time.Time
	TravelerCount int
	Budget        float64
	Status        string
	HasAIPlan     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DurationDays returns the trip length in calendar days, inclusive of both ends
func (p *TravelPlan) DurationDays() int {
	return int(p.EndDate.Sub(p.StartDate).Hours()/24) + 1
}

// UserPreference is the per-user travel profile consumed by generation
type UserPreference struct {
	UserID        string
	Interests     []string
	Pace          string
	BudgetLevel   string
	Transport     string
	Dietary       string
	Accessibility string
	UpdatedAt     time.Time
}

// GenerationAttempt represents one user-initiated itinerary generation.
// At most one attempt per (user, plan) may be pending or processing at a time;
// the database enforces this with a partial unique index.
type GenerationAttempt struct {
	ID           string
	UserID       string
	TravelPlanID string
	Status       string
	ModelUsed    string
	TokensUsed   int
	CostEstimate float64
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// PlanDay is one generated itinerary day with its ordered points
type PlanDay struct {
	ID           string
	TravelPlanID string
	DayNumber    int
	Date         time.Time
	Summary      string
	DailyBudget  float64
	Points       []PlanPoint
}

// PlanPoint is a single activity within a plan day
type PlanPoint struct {
	ID              string
	PlanDayID       string
	OrderNumber     int
	DayPart         string
	Name            string
	Description     string
	DurationMinutes int
	Location        string
	CostEstimate    float64
	Category        string
}

// UsageLog records one language-model call for cost accounting
type UsageLog struct {
	ID               string
	UserID           string
	AttemptID        string
	RequestType      string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
	ErrorMessage     string
	CreatedAt        time.Time
}

// QueuedJob is one durable unit of work in the generation queue
type QueuedJob struct {
	ID          string
	AttemptID   string
	Payload     []byte
	Status      string
	Attempts    int
	MaxAttempts int
	LockedAt    *time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

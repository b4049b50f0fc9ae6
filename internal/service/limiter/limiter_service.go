package limiter

import (
	"errors"
	"fmt"
	"time"

	"vibetravels/internal/logger"
	"vibetravels/internal/repository/db"

	"github.com/sirupsen/logrus"
)

// Color bands for the limit indicator
const (
	BandGreen  = "green"
	BandYellow = "yellow"
	BandRed    = "red"
)

// LimitExceededError is returned when a user is at or over the monthly cap
type LimitExceededError struct {
	Used  int
	Limit int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("monthly generation limit reached (%d/%d)", e.Used, e.Limit)
}

// LimitInfo describes a user's position against the monthly quota
type LimitInfo struct {
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	Percentage  float64   `json:"percentage"`
	ResetDate   time.Time `json:"reset_date"`
	DisplayText string    `json:"display_text"`
	ColorBand   string    `json:"color_band"`
}

// LimiterService enforces the per-user monthly generation cap. The source of
// truth is the attempt log: every attempt in the calendar month counts,
// whatever its status, so in-flight and failed attempts consume the quota
// immediately.
type LimiterService struct {
	db    db.Database
	limit int
	now   func() time.Time
}

// NewLimiterService creates a new LimiterService
func NewLimiterService(database db.Database, monthlyLimit int) *LimiterService {
	return &LimiterService{
		db:    database,
		limit: monthlyLimit,
		now:   time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *LimiterService) WithClock(now func() time.Time) *LimiterService {
	s.now = now
	return s
}

// currentPeriod returns the half-open [start, end) window of the current
// calendar month in UTC
func (s *LimiterService) currentPeriod() (time.Time, time.Time) {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// GetGenerationCount counts the user's attempts in the current month
func (s *LimiterService) GetGenerationCount(userID string) (int, error) {
	from, to := s.currentPeriod()
	return s.db.CountAttempts(userID, from, to)
}

// CanGenerate reports whether the user has quota left this month
func (s *LimiterService) CanGenerate(userID string) (bool, error) {
	count, err := s.GetGenerationCount(userID)
	if err != nil {
		return false, err
	}
	return count < s.limit, nil
}

// ReserveSlot atomically consumes one generation slot by inserting a pending
// attempt. Returns LimitExceededError when the quota is exhausted and
// db.ErrAttemptInFlight when the plan already has an active attempt.
func (s *LimiterService) ReserveSlot(userID, planID string) (*db.GenerationAttempt, error) {
	from, to := s.currentPeriod()

	attempt, err := s.db.ReserveAttempt(userID, planID, s.limit, from, to)
	if err != nil {
		if errors.Is(err, db.ErrMonthlyLimitReached) {
			count, countErr := s.db.CountAttempts(userID, from, to)
			if countErr != nil {
				count = s.limit
			}
			return nil, &LimitExceededError{Used: count, Limit: s.limit}
		}
		return nil, err
	}
	return attempt, nil
}

// Rollback releases a reserved slot whose job was never enqueued. Only
// still-pending attempts can be rolled back.
func (s *LimiterService) Rollback(attemptID string) error {
	if err := s.db.DeletePendingAttempt(attemptID); err != nil {
		return fmt.Errorf("failed to roll back attempt %s: %w", attemptID, err)
	}
	return nil
}

// GetLimitInfo summarizes the user's quota usage for display
func (s *LimiterService) GetLimitInfo(userID string) (*LimitInfo, error) {
	used, err := s.GetGenerationCount(userID)
	if err != nil {
		return nil, err
	}

	remaining := s.limit - used
	if remaining < 0 {
		remaining = 0
	}

	percentage := 0.0
	if s.limit > 0 {
		percentage = float64(used) / float64(s.limit) * 100
	}

	band := BandGreen
	switch {
	case percentage >= 90:
		band = BandRed
	case percentage >= 70:
		band = BandYellow
	}

	_, resetDate := s.currentPeriod()

	return &LimitInfo{
		Used:        used,
		Limit:       s.limit,
		Remaining:   remaining,
		Percentage:  percentage,
		ResetDate:   resetDate,
		DisplayText: fmt.Sprintf("%d / %d generations used this month", used, s.limit),
		ColorBand:   band,
	}, nil
}

// ReportMonthlyCounts logs the per-user attempt counts for the current month.
// Limits are derived from the attempt log, so a monthly "reset" is a report,
// not a mutation.
func (s *LimiterService) ReportMonthlyCounts() (map[string]int, error) {
	from, to := s.currentPeriod()

	counts, err := s.db.CountAttemptsPerUser(from, to)
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"period_start": from,
		"users":        len(counts),
	}).Info("Monthly generation counts (derived, nothing reset)")

	return counts, nil
}

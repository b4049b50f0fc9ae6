package reaper

import (
	"fmt"
	"time"

	"vibetravels/internal/logger"
	"vibetravels/internal/repository/db"

	"github.com/sirupsen/logrus"
)

// TimeoutMessage is the synthetic error written to reaped attempts
const TimeoutMessage = "generation timed out: no terminal state within the processing window"

// SweepResult reports one reaper pass
type SweepResult struct {
	Candidates []db.GenerationAttempt
	Reaped     int
	DryRun     bool
}

// ReaperService force-fails attempts stuck in pending or processing. A worker
// killed by its timeout never reaches the failure path, so without this sweep
// the attempt would stay in-flight forever and hold the user's plan slot.
type ReaperService struct {
	db      db.Database
	timeout time.Duration
	buffer  time.Duration
	now     func() time.Time
}

// NewReaperService creates a new ReaperService
func NewReaperService(database db.Database, jobTimeout, buffer time.Duration) *ReaperService {
	return &ReaperService{
		db:      database,
		timeout: jobTimeout,
		buffer:  buffer,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *ReaperService) WithClock(now func() time.Time) *ReaperService {
	s.now = now
	return s
}

// Cutoff returns the creation-time threshold: anything non-terminal created
// before it is considered stuck
func (s *ReaperService) Cutoff() time.Time {
	return s.now().Add(-(s.timeout + s.buffer))
}

// Sweep finds stuck attempts and, unless dryRun is set, force-fails them with
// the synthetic timeout message. The consumed monthly slot is not refunded.
func (s *ReaperService) Sweep(dryRun bool) (*SweepResult, error) {
	cutoff := s.Cutoff()

	candidates, err := s.db.FindStuckAttempts(cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find stuck attempts: %w", err)
	}

	result := &SweepResult{Candidates: candidates, DryRun: dryRun}
	if dryRun || len(candidates) == 0 {
		logger.Log.WithFields(logrus.Fields{
			"candidates": len(candidates),
			"dry_run":    dryRun,
		}).Info("Reaper sweep (no mutation)")
		return result, nil
	}

	reaped, err := s.db.FailStuckAttempts(cutoff, TimeoutMessage, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to reap stuck attempts: %w", err)
	}
	result.Reaped = reaped

	logger.Log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"reaped":     reaped,
		"cutoff":     cutoff,
	}).Warn("Reaped stuck generation attempts")

	return result, nil
}

// CompletePastPlans moves planned trips whose end date has passed to
// completed. Scheduled alongside the reaper.
func (s *ReaperService) CompletePastPlans() (int, error) {
	completed, err := s.db.CompletePastPlans(s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to complete past plans: %w", err)
	}

	if completed > 0 {
		logger.Log.WithField("plans", completed).Info("Completed past travel plans")
	}
	return completed, nil
}

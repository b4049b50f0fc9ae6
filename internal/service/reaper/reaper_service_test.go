package reaper

import (
	"testing"
	"time"

	"vibetravels/internal/repository/db"
	"vibetravels/internal/testutil"
)

func TestCutoff(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	service := NewReaperService(&testutil.MockDatabase{}, 2*time.Minute, time.Minute).
		WithClock(func() time.Time { return now })

	want := now.Add(-3 * time.Minute)
	if got := service.Cutoff(); !got.Equal(want) {
		t.Errorf("Expected cutoff %v, got %v", want, got)
	}
}

func TestSweep_ReapsStuckAttempts(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	var findCutoff, failCutoff time.Time
	var failMessage string
	mockDB := &testutil.MockDatabase{
		FindStuckAttemptsFunc: func(olderThan time.Time) ([]db.GenerationAttempt, error) {
			findCutoff = olderThan
			return []db.GenerationAttempt{
				{ID: "attempt-1", Status: db.AttemptProcessing},
				{ID: "attempt-2", Status: db.AttemptPending},
			}, nil
		},
		FailStuckAttemptsFunc: func(olderThan time.Time, errorMessage string, failedAt time.Time) (int, error) {
			failCutoff = olderThan
			failMessage = errorMessage
			return 2, nil
		},
	}

	service := NewReaperService(mockDB, 2*time.Minute, time.Minute).
		WithClock(func() time.Time { return now })

	result, err := service.Sweep(false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Reaped != 2 {
		t.Errorf("Expected 2 reaped, got %d", result.Reaped)
	}
	if len(result.Candidates) != 2 {
		t.Errorf("Expected 2 candidates, got %d", len(result.Candidates))
	}
	if !findCutoff.Equal(failCutoff) {
		t.Errorf("Expected find and fail to share the cutoff, got %v vs %v", findCutoff, failCutoff)
	}
	if failMessage != TimeoutMessage {
		t.Errorf("Expected synthetic timeout message, got '%s'", failMessage)
	}
}

func TestSweep_DryRunMutatesNothing(t *testing.T) {
	failCalled := false
	mockDB := &testutil.MockDatabase{
		FindStuckAttemptsFunc: func(olderThan time.Time) ([]db.GenerationAttempt, error) {
			return []db.GenerationAttempt{{ID: "attempt-1", Status: db.AttemptProcessing}}, nil
		},
		FailStuckAttemptsFunc: func(olderThan time.Time, errorMessage string, failedAt time.Time) (int, error) {
			failCalled = true
			return 1, nil
		},
	}

	service := NewReaperService(mockDB, 2*time.Minute, time.Minute)

	result, err := service.Sweep(true)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if failCalled {
		t.Error("Expected dry run to skip FailStuckAttempts")
	}
	if !result.DryRun || result.Reaped != 0 {
		t.Errorf("Expected dry-run result with zero reaped, got %+v", result)
	}
	if len(result.Candidates) != 1 {
		t.Errorf("Expected 1 candidate reported, got %d", len(result.Candidates))
	}
}

func TestSweep_NoCandidatesSkipsMutation(t *testing.T) {
	failCalled := false
	mockDB := &testutil.MockDatabase{
		FindStuckAttemptsFunc: func(olderThan time.Time) ([]db.GenerationAttempt, error) {
			return nil, nil
		},
		FailStuckAttemptsFunc: func(olderThan time.Time, errorMessage string, failedAt time.Time) (int, error) {
			failCalled = true
			return 0, nil
		},
	}

	service := NewReaperService(mockDB, 2*time.Minute, time.Minute)

	result, err := service.Sweep(false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if failCalled {
		t.Error("Expected no mutation with zero candidates")
	}
	if result.Reaped != 0 {
		t.Errorf("Expected zero reaped, got %d", result.Reaped)
	}
}

func TestCompletePastPlans(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	var gotNow time.Time
	mockDB := &testutil.MockDatabase{
		CompletePastPlansFunc: func(cutoff time.Time) (int, error) {
			gotNow = cutoff
			return 3, nil
		},
	}

	service := NewReaperService(mockDB, 2*time.Minute, time.Minute).
		WithClock(func() time.Time { return now })

	completed, err := service.CompletePastPlans()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if completed != 3 {
		t.Errorf("Expected 3 completed plans, got %d", completed)
	}
	if !gotNow.Equal(now) {
		t.Errorf("Expected current time passed through, got %v", gotNow)
	}
}

package limiter

import (
	"errors"
	"testing"
	"time"

	"vibetravels/internal/repository/db"
	"vibetravels/internal/testutil"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCurrentPeriod_MonthBoundaries(t *testing.T) {
	mockDB := &testutil.MockDatabase{}

	var gotFrom, gotTo time.Time
	mockDB.CountAttemptsFunc = func(userID string, from, to time.Time) (int, error) {
		gotFrom, gotTo = from, to
		return 0, nil
	}

	service := NewLimiterService(mockDB, 10).
		WithClock(fixedClock(time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)))

	if _, err := service.GetGenerationCount("user-1"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	wantFrom := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if !gotFrom.Equal(wantFrom) {
		t.Errorf("Expected period start %v, got %v", wantFrom, gotFrom)
	}
	if !gotTo.Equal(wantTo) {
		t.Errorf("Expected period end %v, got %v", wantTo, gotTo)
	}
}

func TestCurrentPeriod_DecemberRollsToJanuary(t *testing.T) {
	mockDB := &testutil.MockDatabase{}

	var gotTo time.Time
	mockDB.CountAttemptsFunc = func(userID string, from, to time.Time) (int, error) {
		gotTo = to
		return 0, nil
	}

	service := NewLimiterService(mockDB, 10).
		WithClock(fixedClock(time.Date(2025, 12, 15, 12, 0, 0, 0, time.UTC)))

	if _, err := service.GetGenerationCount("user-1"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	wantTo := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !gotTo.Equal(wantTo) {
		t.Errorf("Expected period end %v, got %v", wantTo, gotTo)
	}
}

func TestCanGenerate(t *testing.T) {
	tests := []struct {
		name  string
		count int
		limit int
		want  bool
	}{
		{"under limit", 3, 10, true},
		{"one below limit", 9, 10, true},
		{"at limit", 10, 10, false},
		{"over limit", 11, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := &testutil.MockDatabase{
				CountAttemptsFunc: func(userID string, from, to time.Time) (int, error) {
					return tt.count, nil
				},
			}
			service := NewLimiterService(mockDB, tt.limit)

			got, err := service.CanGenerate("user-1")
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected CanGenerate=%v with %d/%d, got %v", tt.want, tt.count, tt.limit, got)
			}
		})
	}
}

func TestReserveSlot_Success(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		ReserveAttemptFunc: func(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
			return &db.GenerationAttempt{
				ID:           "attempt-1",
				UserID:       userID,
				TravelPlanID: planID,
				Status:       db.AttemptPending,
			}, nil
		},
	}
	service := NewLimiterService(mockDB, 10)

	attempt, err := service.ReserveSlot("user-1", "plan-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if attempt.Status != db.AttemptPending {
		t.Errorf("Expected pending attempt, got status '%s'", attempt.Status)
	}
}

func TestReserveSlot_LimitReached(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		ReserveAttemptFunc: func(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
			return nil, db.ErrMonthlyLimitReached
		},
		CountAttemptsFunc: func(userID string, from, to time.Time) (int, error) {
			return 10, nil
		},
	}
	service := NewLimiterService(mockDB, 10)

	_, err := service.ReserveSlot("user-1", "plan-1")
	if err == nil {
		t.Fatal("Expected limit error, got nil")
	}

	var limitErr *LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("Expected *LimitExceededError, got %T: %v", err, err)
	}
	if limitErr.Used != 10 || limitErr.Limit != 10 {
		t.Errorf("Expected 10/10 in error, got %d/%d", limitErr.Used, limitErr.Limit)
	}
}

func TestReserveSlot_AttemptInFlightPassesThrough(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		ReserveAttemptFunc: func(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
			return nil, db.ErrAttemptInFlight
		},
	}
	service := NewLimiterService(mockDB, 10)

	_, err := service.ReserveSlot("user-1", "plan-1")
	if !errors.Is(err, db.ErrAttemptInFlight) {
		t.Errorf("Expected ErrAttemptInFlight, got: %v", err)
	}
}

func TestRollback(t *testing.T) {
	deleted := ""
	mockDB := &testutil.MockDatabase{
		DeletePendingAttemptFunc: func(id string) error {
			deleted = id
			return nil
		},
	}
	service := NewLimiterService(mockDB, 10)

	if err := service.Rollback("attempt-1"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if deleted != "attempt-1" {
		t.Errorf("Expected attempt-1 deleted, got '%s'", deleted)
	}
}

func TestGetLimitInfo_Bands(t *testing.T) {
	tests := []struct {
		used     int
		band     string
		remained int
	}{
		{0, BandGreen, 10},
		{6, BandGreen, 4},
		{7, BandYellow, 3},
		{8, BandYellow, 2},
		{9, BandRed, 1},
		{10, BandRed, 0},
	}

	for _, tt := range tests {
		mockDB := &testutil.MockDatabase{
			CountAttemptsFunc: func(userID string, from, to time.Time) (int, error) {
				return tt.used, nil
			},
		}
		service := NewLimiterService(mockDB, 10).
			WithClock(fixedClock(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)))

		info, err := service.GetLimitInfo("user-1")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if info.ColorBand != tt.band {
			t.Errorf("used=%d: expected band '%s', got '%s'", tt.used, tt.band, info.ColorBand)
		}
		if info.Remaining != tt.remained {
			t.Errorf("used=%d: expected remaining %d, got %d", tt.used, tt.remained, info.Remaining)
		}

		wantReset := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		if !info.ResetDate.Equal(wantReset) {
			t.Errorf("Expected reset date %v, got %v", wantReset, info.ResetDate)
		}
	}
}

func TestReportMonthlyCounts(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		CountAttemptsPerUserFunc: func(from, to time.Time) (map[string]int, error) {
			return map[string]int{"user-1": 4, "user-2": 10}, nil
		},
	}
	service := NewLimiterService(mockDB, 10)

	counts, err := service.ReportMonthlyCounts()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if counts["user-2"] != 10 {
		t.Errorf("Expected user-2 count 10, got %d", counts["user-2"])
	}
}

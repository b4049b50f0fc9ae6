package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// MockClient is a deterministic AIClient for tests and development.
// It synthesizes a valid itinerary from the request at zero cost.
type MockClient struct {
	// FailWith, when set, is returned by every call instead of a result
	FailWith error
}

var _ AIClient = (*MockClient)(nil)

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{}
}

// DefaultModel returns the mock model identifier
func (m *MockClient) DefaultModel() string {
	return "mock/travel-planner"
}

// GenerateItinerary returns a canned itinerary derived from the request
func (m *MockClient) GenerateItinerary(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if err := ctx.Err(); err != nil {
		return nil, newAIServiceError(ErrCodeTimeout, "mock call cancelled", err)
	}

	duration := req.DurationDays
	if duration <= 0 {
		duration = 1
	}
	destination := req.Destination
	if destination == "" {
		destination = "Unknown"
	}

	dailyBudget := 0.0
	if req.Budget > 0 {
		dailyBudget = req.Budget / float64(duration)
	}

	itinerary := &Itinerary{
		Destination:       destination,
		DurationDays:      duration,
		TotalCostEstimate: req.Budget,
		Tips: []string{
			fmt.Sprintf("Check the local weather in %s before packing.", destination),
			"Keep digital copies of your travel documents.",
		},
	}

	for i := 0; i < duration; i++ {
		date := req.StartDate.AddDate(0, 0, i)
		itinerary.Days = append(itinerary.Days, ItineraryDay{
			DayNumber:   i + 1,
			Date:        date.Format("2006-01-02"),
			DailyBudget: dailyBudget,
			Activities: []Activity{
				{
					Time:         "09:00",
					Activity:     fmt.Sprintf("Morning walk through central %s", destination),
					Location:     fmt.Sprintf("%s city center", destination),
					CostEstimate: 0,
					Category:     "sightseeing",
				},
				{
					Time:         "13:00",
					Activity:     "Lunch at a local restaurant",
					Location:     destination,
					CostEstimate: dailyBudget * 0.3,
					Category:     "food",
				},
				{
					Time:         "16:00",
					Activity:     fmt.Sprintf("Visit a museum or landmark, day %d", i+1),
					Location:     destination,
					CostEstimate: dailyBudget * 0.2,
					Category:     "entertainment",
				},
			},
		})
	}

	raw, err := json.Marshal(itinerary)
	if err != nil {
		return nil, newAIServiceError(ErrCodeSchema, "error encoding mock itinerary", err)
	}

	model := req.Model
	if model == "" {
		model = m.DefaultModel()
	}

	return &GenerationResult{
		Itinerary:     itinerary,
		RawContent:    string(raw),
		Model:         model,
		EstimatedCost: 0,
	}, nil
}

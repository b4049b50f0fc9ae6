package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Activity categories the schema contract allows
var ActivityCategories = []string{
	"sightseeing", "food", "entertainment", "shopping", "relaxation", "transport",
}

// Itinerary is the typed form of the model's structured output
type Itinerary struct {
	Destination       string         `json:"destination"`
	DurationDays      int            `json:"duration_days"`
	Days              []ItineraryDay `json:"days"`
	TotalCostEstimate float64        `json:"total_cost_estimate"`
	Tips              []string       `json:"tips"`
}

// ItineraryDay is one day of the generated plan
type ItineraryDay struct {
	DayNumber   int        `json:"day_number"`
	Date        string     `json:"date"`
	Activities  []Activity `json:"activities"`
	DailyBudget float64    `json:"daily_budget"`
}

// Activity is a single scheduled item within a day
type Activity struct {
	Time         string  `json:"time"`
	Activity     string  `json:"activity"`
	Location     string  `json:"location"`
	CostEstimate float64 `json:"cost_estimate"`
	Category     string  `json:"category"`
}

// ItinerarySchema builds the strict JSON schema the model must satisfy:
// every field required, additionalProperties false throughout.
func ItinerarySchema() map[string]any {
	activitySchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"time":          map[string]any{"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
			"activity":      map[string]any{"type": "string"},
			"location":      map[string]any{"type": "string"},
			"cost_estimate": map[string]any{"type": "number"},
			"category":      map[string]any{"type": "string", "enum": ActivityCategories},
		},
		"required":             []string{"time", "activity", "location", "cost_estimate", "category"},
		"additionalProperties": false,
	}

	daySchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"day_number":   map[string]any{"type": "integer"},
			"date":         map[string]any{"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
			"activities":   map[string]any{"type": "array", "items": activitySchema},
			"daily_budget": map[string]any{"type": "number"},
		},
		"required":             []string{"day_number", "date", "activities", "daily_budget"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"destination":         map[string]any{"type": "string"},
			"duration_days":       map[string]any{"type": "integer"},
			"days":                map[string]any{"type": "array", "items": daySchema},
			"total_cost_estimate": map[string]any{"type": "number"},
			"tips":                map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []string{"destination", "duration_days", "days", "total_cost_estimate", "tips"},
		"additionalProperties": false,
	}
}

// ItinerarySchemaJSON returns the schema contract as raw JSON
func ItinerarySchemaJSON() json.RawMessage {
	data, err := json.Marshal(ItinerarySchema())
	if err != nil {
		// The schema is a static literal; marshaling cannot fail
		panic(err)
	}
	return data
}

// ParseItinerary decodes and structurally validates a model response.
// Any violation surfaces as a schema-class AIServiceError.
func ParseItinerary(content string) (*Itinerary, error) {
	var itinerary Itinerary
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&itinerary); err != nil {
		return nil, newAIServiceError(ErrCodeSchema, "response is not valid itinerary JSON", err)
	}

	if err := ValidateItinerary(&itinerary); err != nil {
		return nil, err
	}
	return &itinerary, nil
}

// ValidateItinerary checks the structural invariants the schema promises
func ValidateItinerary(it *Itinerary) error {
	if it.Destination == "" {
		return newAIServiceError(ErrCodeSchema, "missing destination", nil)
	}
	if it.DurationDays <= 0 {
		return newAIServiceError(ErrCodeSchema, "duration_days must be positive", nil)
	}
	if len(it.Days) != it.DurationDays {
		return newAIServiceError(ErrCodeSchema,
			fmt.Sprintf("expected %d days, got %d", it.DurationDays, len(it.Days)), nil)
	}
	if it.Tips == nil {
		return newAIServiceError(ErrCodeSchema, "missing tips", nil)
	}

	for i, day := range it.Days {
		if day.DayNumber != i+1 {
			return newAIServiceError(ErrCodeSchema,
				fmt.Sprintf("day %d has day_number %d", i+1, day.DayNumber), nil)
		}
		if _, err := time.Parse("2006-01-02", day.Date); err != nil {
			return newAIServiceError(ErrCodeSchema,
				fmt.Sprintf("day %d has malformed date %q", day.DayNumber, day.Date), nil)
		}
		if len(day.Activities) == 0 {
			return newAIServiceError(ErrCodeSchema,
				fmt.Sprintf("day %d has no activities", day.DayNumber), nil)
		}
		for _, activity := range day.Activities {
			if _, err := time.Parse("15:04", activity.Time); err != nil {
				return newAIServiceError(ErrCodeSchema,
					fmt.Sprintf("day %d activity %q has malformed time %q", day.DayNumber, activity.Activity, activity.Time), nil)
			}
			if !isValidCategory(activity.Category) {
				return newAIServiceError(ErrCodeSchema,
					fmt.Sprintf("day %d activity %q has unknown category %q", day.DayNumber, activity.Activity, activity.Category), nil)
			}
		}
	}
	return nil
}

func isValidCategory(category string) bool {
	for _, c := range ActivityCategories {
		if c == category {
			return true
		}
	}
	return false
}

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalize_Defaults(t *testing.T) {
	v := NewPreferencesValidator()

	prefs, err := v.Normalize(nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if prefs.Pace != "moderate" {
		t.Errorf("Expected default pace 'moderate', got '%s'", prefs.Pace)
	}
	if prefs.BudgetLevel != "standard" {
		t.Errorf("Expected default budget_level 'standard', got '%s'", prefs.BudgetLevel)
	}
	if prefs.Transport != "walk_transit" {
		t.Errorf("Expected default transport 'walk_transit', got '%s'", prefs.Transport)
	}
	if len(prefs.Interests) != 0 {
		t.Errorf("Expected no interests, got %v", prefs.Interests)
	}
}

func TestNormalize_ValidPayload(t *testing.T) {
	v := NewPreferencesValidator()

	prefs, err := v.Normalize(map[string]any{
		"pace":          "Relaxed",
		"budget_level":  "premium",
		"transport":     "  mixed ",
		"interests":     []any{"museums", " street food ", ""},
		"dietary":       "vegetarian",
		"accessibility": "step-free access",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if prefs.Pace != "relaxed" {
		t.Errorf("Expected lowercased pace 'relaxed', got '%s'", prefs.Pace)
	}
	if prefs.Transport != "mixed" {
		t.Errorf("Expected trimmed transport 'mixed', got '%s'", prefs.Transport)
	}
	if len(prefs.Interests) != 2 {
		t.Fatalf("Expected empty interests dropped, got %v", prefs.Interests)
	}
	if prefs.Interests[1] != "street food" {
		t.Errorf("Expected trimmed interest 'street food', got '%s'", prefs.Interests[1])
	}
	if prefs.Dietary != "vegetarian" {
		t.Errorf("Expected dietary 'vegetarian', got '%s'", prefs.Dietary)
	}
}

func TestNormalize_UnknownKeysIgnored(t *testing.T) {
	v := NewPreferencesValidator()

	prefs, err := v.Normalize(map[string]any{
		"pace":           "fast",
		"favorite_color": "blue",
		"budget":         12345,
	})
	if err != nil {
		t.Fatalf("Expected unknown keys to be ignored, got: %v", err)
	}
	if prefs.Pace != "fast" {
		t.Errorf("Expected pace 'fast', got '%s'", prefs.Pace)
	}
}

func TestNormalize_CollectsAllViolations(t *testing.T) {
	v := NewPreferencesValidator()

	_, err := v.Normalize(map[string]any{
		"pace":         "hyperspeed",
		"budget_level": 12,
		"transport":    "teleport",
		"interests":    "museums",
		"dietary":      strings.Repeat("x", 501),
	})
	if err == nil {
		t.Fatal("Expected validation error, got nil")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}

	for _, field := range []string{"pace", "budget_level", "transport", "interests", "dietary"} {
		if _, ok := vErr.Fields[field]; !ok {
			t.Errorf("Expected violation for field '%s', got fields: %v", field, vErr.Fields)
		}
	}
	if len(vErr.Fields) != 5 {
		t.Errorf("Expected 5 violations, got %d", len(vErr.Fields))
	}
}

func TestNormalize_InterestCaps(t *testing.T) {
	v := NewPreferencesValidator()

	tooMany := make([]any, 11)
	for i := range tooMany {
		tooMany[i] = "interest"
	}

	_, err := v.Normalize(map[string]any{"interests": tooMany})
	if err == nil {
		t.Fatal("Expected error for more than 10 interests, got nil")
	}

	_, err = v.Normalize(map[string]any{
		"interests": []any{strings.Repeat("x", 101)},
	})
	if err == nil {
		t.Fatal("Expected error for over-long interest, got nil")
	}

	prefs, err := v.Normalize(map[string]any{
		"interests": []string{"hiking", "food"},
	})
	if err != nil {
		t.Fatalf("Expected no error for []string payload, got: %v", err)
	}
	if len(prefs.Interests) != 2 {
		t.Errorf("Expected 2 interests, got %v", prefs.Interests)
	}
}

func TestValidationError_MessageIsDeterministic(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"transport": "must be one of: walk_transit, car_rental, mixed",
		"pace":      "must be a string",
	}}

	msg := err.Error()
	if !strings.HasPrefix(msg, "invalid preferences: ") {
		t.Errorf("Unexpected message prefix: %s", msg)
	}
	if strings.Index(msg, "pace") > strings.Index(msg, "transport") {
		t.Errorf("Expected fields sorted alphabetically, got: %s", msg)
	}
}

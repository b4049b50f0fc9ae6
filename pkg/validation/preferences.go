package validation

import (
	"fmt"
	"sort"
	"strings"
)

// Allowed enum values
var (
	ValidPaces        = []string{"relaxed", "moderate", "fast"}
	ValidBudgetLevels = []string{"economy", "standard", "premium"}
	ValidTransports   = []string{"walk_transit", "car_rental", "mixed"}
)

const (
	maxFreeTextLength = 500
	maxInterests      = 10
	maxInterestLength = 100
)

// Preferences is the normalized, typed form of a raw preferences payload
type Preferences struct {
	Interests     []string `json:"interests"`
	Pace          string   `json:"pace"`
	BudgetLevel   string   `json:"budget_level"`
	Transport     string   `json:"transport"`
	Dietary       string   `json:"dietary"`
	Accessibility string   `json:"accessibility"`
}

// ValidationError reports every violated field, not just the first
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid preferences: " + strings.Join(parts, "; ")
}

// PreferencesValidator normalizes raw preference payloads
type PreferencesValidator struct{}

// NewPreferencesValidator creates a new PreferencesValidator
func NewPreferencesValidator() *PreferencesValidator {
	return &PreferencesValidator{}
}

// Normalize turns a free-form payload into typed Preferences. Unknown keys
// are ignored for forward compatibility. Missing enum fields fall back to
// defaults; present but invalid values are violations. All violations are
// collected into a single ValidationError.
func (v *PreferencesValidator) Normalize(raw map[string]any) (*Preferences, error) {
	prefs := &Preferences{
		Pace:        "moderate",
		BudgetLevel: "standard",
		Transport:   "walk_transit",
	}
	violations := make(map[string]string)

	if value, ok := raw["pace"]; ok {
		prefs.Pace = v.normalizeEnum("pace", value, ValidPaces, violations)
	}
	if value, ok := raw["budget_level"]; ok {
		prefs.BudgetLevel = v.normalizeEnum("budget_level", value, ValidBudgetLevels, violations)
	}
	if value, ok := raw["transport"]; ok {
		prefs.Transport = v.normalizeEnum("transport", value, ValidTransports, violations)
	}
	if value, ok := raw["interests"]; ok {
		prefs.Interests = v.normalizeInterests(value, violations)
	}
	if value, ok := raw["dietary"]; ok {
		prefs.Dietary = v.normalizeFreeText("dietary", value, violations)
	}
	if value, ok := raw["accessibility"]; ok {
		prefs.Accessibility = v.normalizeFreeText("accessibility", value, violations)
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Fields: violations}
	}
	return prefs, nil
}

func (v *PreferencesValidator) normalizeEnum(field string, value any, allowed []string, violations map[string]string) string {
	str, ok := value.(string)
	if !ok {
		violations[field] = "must be a string"
		return ""
	}

	str = strings.ToLower(strings.TrimSpace(str))
	for _, candidate := range allowed {
		if candidate == str {
			return str
		}
	}

	violations[field] = fmt.Sprintf("must be one of: %s; got %q", strings.Join(allowed, ", "), str)
	return ""
}

func (v *PreferencesValidator) normalizeInterests(value any, violations map[string]string) []string {
	var items []string
	switch list := value.(type) {
	case []string:
		items = list
	case []any:
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				violations["interests"] = "must be a list of strings"
				return nil
			}
			items = append(items, str)
		}
	default:
		violations["interests"] = "must be a list of strings"
		return nil
	}

	if len(items) > maxInterests {
		violations["interests"] = fmt.Sprintf("at most %d interests allowed, got %d", maxInterests, len(items))
		return nil
	}

	normalized := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if len(item) > maxInterestLength {
			violations["interests"] = fmt.Sprintf("each interest must be at most %d characters", maxInterestLength)
			return nil
		}
		normalized = append(normalized, item)
	}
	return normalized
}

func (v *PreferencesValidator) normalizeFreeText(field string, value any, violations map[string]string) string {
	str, ok := value.(string)
	if !ok {
		violations[field] = "must be a string"
		return ""
	}

	str = strings.TrimSpace(str)
	if len(str) > maxFreeTextLength {
		violations[field] = fmt.Sprintf("must be at most %d characters, got %d", maxFreeTextLength, len(str))
		return ""
	}
	return str
}

package llm

import (
	"context"
	"encoding/json"
	"time"
)

// GenerationRequest carries everything an AIClient needs for one call.
// Destination, DurationDays, StartDate and Budget duplicate facts already in
// the prompts as plain data; the mock client synthesizes its canned itinerary
// from them and the real clients ignore them.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Schema       json.RawMessage
	Model        string
	MaxTokens    int
	Temperature  float64

	Destination  string
	DurationDays int
	StartDate    time.Time
	Budget       float64
}

// GenerationResult is the parsed outcome of one model call
type GenerationResult struct {
	Itinerary        *Itinerary
	RawContent       string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCost    float64
}

// AIClient defines the interface for itinerary-generation model providers
// (mock, OpenRouter, OpenAI)
type AIClient interface {
	// GenerateItinerary performs one model call against the schema contract
	GenerateItinerary(ctx context.Context, req GenerationRequest) (*GenerationResult, error)

	// DefaultModel returns the model used when the request does not name one
	DefaultModel() string
}

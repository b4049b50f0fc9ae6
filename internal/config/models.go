package config

import (
	"encoding/json"
	"os"
)

// Model represents an available LLM model with its pricing
type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Tier     string `json:"tier"`
	// Prices are USD per one million tokens
	PromptPrice     float64 `json:"prompt_price"`
	CompletionPrice float64 `json:"completion_price"`
}

// ModelsConfig holds the available models configuration
type ModelsConfig struct {
	models []Model
}

// NewModelsConfig creates a new models configuration from a file
func NewModelsConfig(configPath string) (*ModelsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var models []Model
	err = json.Unmarshal(data, &models)
	if err != nil {
		return nil, err
	}

	return &ModelsConfig{models: models}, nil
}

// NewModelsConfigFromList creates a models configuration from an in-memory list.
// Used by tests that should not depend on a config file on disk.
func NewModelsConfigFromList(models []Model) *ModelsConfig {
	return &ModelsConfig{models: models}
}

// GetAvailableModels returns the list of available models
func (mc *ModelsConfig) GetAvailableModels() []Model {
	return mc.models
}

// IsValidModel checks if a model ID is in the list of available models
func (mc *ModelsConfig) IsValidModel(modelID string) bool {
	for _, model := range mc.models {
		if model.ID == modelID {
			return true
		}
	}
	return false
}

// GetDefaultModel returns the first model as the default
func (mc *ModelsConfig) GetDefaultModel() string {
	if len(mc.models) > 0 {
		return mc.models[0].ID
	}
	// Fallback in case no models are configured (shouldn't happen)
	return "openai/gpt-4o-mini"
}

// EstimateCost computes the USD cost of a call from token counts.
// Unknown models cost zero; the usage log still records the token counts.
func (mc *ModelsConfig) EstimateCost(modelID string, promptTokens, completionTokens int) float64 {
	for _, model := range mc.models {
		if model.ID == modelID {
			return float64(promptTokens)/1_000_000*model.PromptPrice +
				float64(completionTokens)/1_000_000*model.CompletionPrice
		}
	}
	return 0
}

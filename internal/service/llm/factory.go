package llm

import (
	"fmt"

	"vibetravels/internal/config"
	"vibetravels/internal/logger"
)

// ProviderType represents the type of AI provider
type ProviderType string

const (
	ProviderMock       ProviderType = "mock"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOpenAI     ProviderType = "openai"
)

// ParseProviderType parses a string into a ProviderType
func ParseProviderType(s string) (ProviderType, error) {
	switch s {
	case "openrouter", "":
		return ProviderOpenRouter, nil
	case "openai":
		return ProviderOpenAI, nil
	case "mock":
		return ProviderMock, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// NewAIClient creates the AIClient named by the LLM configuration
func NewAIClient(llmConfig *config.LLMConfig, modelsConfig *config.ModelsConfig) (AIClient, error) {
	providerType, err := ParseProviderType(llmConfig.Provider)
	if err != nil {
		return nil, err
	}

	switch providerType {
	case ProviderMock:
		logger.Log.Info("Using mock AI client")
		return NewMockClient(), nil
	case ProviderOpenRouter:
		logger.Log.Info("Using OpenRouter AI client")
		return NewOpenRouterClient(llmConfig, modelsConfig), nil
	case ProviderOpenAI:
		logger.Log.Info("Using OpenAI client")
		return NewOpenAIClient(llmConfig, modelsConfig)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"vibetravels/internal/config"
	"vibetravels/internal/logger"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements AIClient against the OpenAI API directly
type OpenAIClient struct {
	config *config.LLMConfig
	models *config.ModelsConfig
	client *openai.Client
}

var _ AIClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI client with config
func NewOpenAIClient(llmConfig *config.LLMConfig, modelsConfig *config.ModelsConfig) (*OpenAIClient, error) {
	if llmConfig.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	return &OpenAIClient{
		config: llmConfig,
		models: modelsConfig,
		client: openai.NewClient(llmConfig.OpenAIAPIKey),
	}, nil
}

// DefaultModel returns the configured default model, stripped of any
// OpenRouter-style vendor prefix
func (c *OpenAIClient) DefaultModel() string {
	return stripVendorPrefix(c.models.GetDefaultModel())
}

// GenerateItinerary performs the model call with bounded retries
func (c *OpenAIClient) GenerateItinerary(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	// The registry keeps OpenRouter-style ids; the API wants the bare name
	registryModel := req.Model
	if registryModel == "" {
		registryModel = c.models.GetDefaultModel()
	}
	model := stripVendorPrefix(registryModel)

	var lastErr *AIServiceError
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Log.WithField("attempt", attempt).Warn("Retrying OpenAI call")
			select {
			case <-ctx.Done():
				return nil, newAIServiceError(ErrCodeTimeout, "generation cancelled", ctx.Err())
			case <-time.After(c.config.RetryBackoff * time.Duration(attempt)):
			}
		}

		result, err := c.call(ctx, req, model, registryModel)
		if err == nil {
			return result, nil
		}

		var aiErr *AIServiceError
		if !errors.As(err, &aiErr) {
			aiErr = newAIServiceError(ErrCodeProvider, "unexpected error", err)
		}
		if !aiErr.Retryable() {
			return nil, aiErr
		}
		lastErr = aiErr
	}

	return nil, lastErr
}

func (c *OpenAIClient) call(ctx context.Context, req GenerationRequest, model, registryModel string) (*GenerationResult, error) {
	logger.Log.WithField("model", model).Info("Calling OpenAI API")

	callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	temperature := float32(req.Temperature)
	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "itinerary",
				Schema: req.Schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		if callCtx.Err() != nil {
			return nil, newAIServiceError(ErrCodeTimeout, "request timed out", err)
		}
		return nil, newAIServiceError(ErrCodeProvider, "OpenAI API call failed", err)
	}

	if len(resp.Choices) == 0 {
		return nil, newAIServiceError(ErrCodeProvider, "OpenAI returned no choices", nil)
	}

	content := resp.Choices[0].Message.Content
	itinerary, err := ParseItinerary(content)
	if err != nil {
		return nil, err
	}

	return &GenerationResult{
		Itinerary:        itinerary,
		RawContent:       content,
		Model:            registryModel,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		EstimatedCost:    c.models.EstimateCost(registryModel, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}

// stripVendorPrefix turns an OpenRouter-style id like "openai/gpt-4o-mini"
// into the bare model name the OpenAI API expects
func stripVendorPrefix(model string) string {
	if idx := strings.IndexByte(model, '/'); idx >= 0 {
		return model[idx+1:]
	}
	return model
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"vibetravels/internal/config"
	"vibetravels/internal/logger"

	"github.com/sirupsen/logrus"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterClient implements AIClient using direct OpenRouter API calls
// with structured outputs
type OpenRouterClient struct {
	config  *config.LLMConfig
	models  *config.ModelsConfig
	client  *http.Client
	baseURL string
}

var _ AIClient = (*OpenRouterClient)(nil)

// NewOpenRouterClient creates a new OpenRouter client with config
func NewOpenRouterClient(llmConfig *config.LLMConfig, modelsConfig *config.ModelsConfig) *OpenRouterClient {
	return &OpenRouterClient{
		config:  llmConfig,
		models:  modelsConfig,
		client:  &http.Client{Timeout: llmConfig.RequestTimeout},
		baseURL: openRouterURL,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Stream         bool           `json:"stream"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *responseUsage `json:"usage,omitempty"`
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// DefaultModel returns the configured default model
func (c *OpenRouterClient) DefaultModel() string {
	return c.models.GetDefaultModel()
}

// GenerateItinerary performs the model call with bounded retries. Network and
// provider errors are retried with backoff up to MaxRetries; a response that
// violates the schema contract fails immediately.
func (c *OpenRouterClient) GenerateItinerary(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if c.config.OpenRouterAPIKey == "" {
		return nil, newAIServiceError(ErrCodeProvider, "OPENROUTER_API_KEY not configured", nil)
	}

	model := req.Model
	if model == "" {
		model = c.DefaultModel()
	}

	var lastErr *AIServiceError
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Log.WithFields(logrus.Fields{
				"attempt": attempt,
				"model":   model,
			}).Warn("Retrying OpenRouter call")

			select {
			case <-ctx.Done():
				return nil, newAIServiceError(ErrCodeTimeout, "generation cancelled", ctx.Err())
			case <-time.After(c.config.RetryBackoff * time.Duration(attempt)):
			}
		}

		result, err := c.call(ctx, req, model)
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

func (c *OpenRouterClient) call(ctx context.Context, req GenerationRequest, model string) (*GenerationResult, error) {
	logger.Log.WithFields(logrus.Fields{
		"model":       model,
		"temperature": req.Temperature,
	}).Info("Calling OpenRouter API")

	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Stream:      false,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   "itinerary",
				Strict: true,
				Schema: req.Schema,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, newAIServiceError(ErrCodeProvider, "error marshaling request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, newAIServiceError(ErrCodeProvider, "error creating request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.OpenRouterAPIKey)
	httpReq.Header.Set("X-Title", "VibeTravels")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newAIServiceError(ErrCodeTimeout, "request timed out", err)
		}
		return nil, newAIServiceError(ErrCodeNetwork, "error sending request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newAIServiceError(ErrCodeNetwork, "error reading response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAIServiceError(ErrCodeProvider,
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	logger.Log.WithField("response_length", len(body)).Debug("Received raw response")

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, newAIServiceError(ErrCodeProvider, "error decoding response", err)
	}
	if chatResp.Error != nil {
		return nil, newAIServiceError(ErrCodeProvider,
			fmt.Sprintf("provider error %v: %s", chatResp.Error.Code, chatResp.Error.Message), nil)
	}
	if len(chatResp.Choices) == 0 {
		return nil, newAIServiceError(ErrCodeProvider, "no response from API", nil)
	}

	content := chatResp.Choices[0].Message.Content
	itinerary, err := ParseItinerary(content)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{
		Itinerary:  itinerary,
		RawContent: content,
		Model:      model,
	}
	if chatResp.Usage != nil {
		result.PromptTokens = chatResp.Usage.PromptTokens
		result.CompletionTokens = chatResp.Usage.CompletionTokens
		result.TotalTokens = chatResp.Usage.TotalTokens
		result.EstimatedCost = c.models.EstimateCost(model, result.PromptTokens, result.CompletionTokens)
	}
	return result, nil
}

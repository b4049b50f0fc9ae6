package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vibetravels/internal/logger"

	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Auth     AuthConfig
	Limits   LimitsConfig
	Worker   WorkerConfig
	Models   *ModelsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LLMConfig holds language-model provider configuration
type LLMConfig struct {
	Provider         string
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	SystemPrompt     string
	MaxTokens        int
	Temperature      float64
	RequestTimeout   time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       []byte
	TokenExpiration time.Duration
}

// LimitsConfig holds the monthly generation quota
type LimitsConfig struct {
	MonthlyGenerations int
}

// WorkerConfig holds queue worker and scheduler configuration
type WorkerConfig struct {
	Count          int
	PollInterval   time.Duration
	JobTimeout     time.Duration
	MaxJobAttempts int
	ReaperInterval time.Duration
	ReaperBuffer   time.Duration
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	config.Server = ServerConfig{
		Port: getEnvOrDefault("SERVER_PORT", "8080"),
	}

	config.Database = DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "postgres"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:     getEnvOrDefault("DB_NAME", "vibetravels"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	provider := getEnvOrDefault("LLM_PROVIDER", "openrouter")
	if provider == "openrouter" && os.Getenv("OPENROUTER_API_KEY") == "" {
		logger.Log.Warn("OPENROUTER_API_KEY environment variable not set")
	}

	config.LLM = LLMConfig{
		Provider:         provider,
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		SystemPrompt:     getEnvOrDefault("LLM_SYSTEM_PROMPT", getDefaultSystemPrompt()),
		MaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 4000),
		Temperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		RequestTimeout:   getEnvAsDuration("LLM_REQUEST_TIMEOUT", 90*time.Second),
		MaxRetries:       getEnvAsInt("LLM_MAX_RETRIES", 2),
		RetryBackoff:     getEnvAsDuration("LLM_RETRY_BACKOFF", 2*time.Second),
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}

	config.Auth = AuthConfig{
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
	}

	config.Limits = LimitsConfig{
		MonthlyGenerations: getEnvAsInt("MONTHLY_GENERATION_LIMIT", 10),
	}

	config.Worker = WorkerConfig{
		Count:          getEnvAsInt("WORKER_COUNT", 2),
		PollInterval:   getEnvAsDuration("WORKER_POLL_INTERVAL", time.Second),
		JobTimeout:     getEnvAsDuration("JOB_TIMEOUT", 120*time.Second),
		MaxJobAttempts: getEnvAsInt("JOB_MAX_ATTEMPTS", 2),
		ReaperInterval: getEnvAsDuration("REAPER_INTERVAL", 3*time.Minute),
		ReaperBuffer:   getEnvAsDuration("REAPER_BUFFER", time.Minute),
	}

	modelsConfigPath := getEnvOrDefault("MODELS_CONFIG_PATH", filepath.Join("config", "models.json"))
	modelsConfig, err := NewModelsConfig(modelsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load models config: %w", err)
	}
	config.Models = modelsConfig

	return config, nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid float value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}

func getDefaultSystemPrompt() string {
	return `You are a professional travel planner creating realistic day-by-day itineraries.

Instructions:
1. Produce exactly one itinerary day per calendar day of the trip
2. Keep daily activity costs within the stated budget
3. Match the requested pace (relaxed, moderate or fast)
4. Honor dietary and accessibility restrictions in every suggestion
5. Respond only with JSON that satisfies the provided schema

Do not include any prose outside the JSON document.`
}

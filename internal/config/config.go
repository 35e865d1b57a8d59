// Package config loads application configuration from environment variables
// with an optional YAML overlay file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	ServerPort  string `yaml:"server_port"`
	FrontendURL string `yaml:"frontend_url"`

	// RemoteStore selects the document collaborator backend: "redis",
	// "postgres" or "memory".
	RemoteStore string `yaml:"remote_store"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	RabbitMQURL      string `yaml:"rabbitmq_url"`
	RabbitMQPrefetch int    `yaml:"rabbitmq_prefetch"`

	OpenAIKey string `yaml:"openai_key"`
	AIModel   string `yaml:"ai_model"`
	AIBaseURL string `yaml:"ai_base_url"`

	CalendarBaseURL string `yaml:"calendar_base_url"`
	CalendarToken   string `yaml:"calendar_token"`
	CalendarID      string `yaml:"calendar_id"`

	// AuthJWKSURL is where bearer-token signing keys are fetched from.
	// When empty, tokens are parsed without signature verification
	// (development only).
	AuthJWKSURL string `yaml:"auth_jwks_url"`

	RateLimit string `yaml:"rate_limit"`

	OTELEnabled  bool   `yaml:"otel_enabled"`
	OTELEndpoint string `yaml:"otel_endpoint"`

	DebugMode bool `yaml:"debug_mode"`
	DevMode   bool `yaml:"dev_mode"`
}

// Load builds the configuration: defaults, then the optional YAML file named
// by DAYGRAPH_CONFIG, then environment variables on top.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:       "8080",
		FrontendURL:      "http://localhost:3000",
		RemoteStore:      "redis",
		RedisURL:         "redis://localhost:6379/0",
		RabbitMQPrefetch: 1,
		RateLimit:        "25-S",
		CalendarID:       "primary",
	}

	if path := os.Getenv("DAYGRAPH_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.RemoteStore = getEnv("REMOTE_STORE", cfg.RemoteStore)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RabbitMQPrefetch = getEnvInt("RABBITMQ_PREFETCH", cfg.RabbitMQPrefetch)
	cfg.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIKey)
	cfg.AIModel = getEnv("AI_MODEL", cfg.AIModel)
	cfg.AIBaseURL = getEnv("AI_BASE_URL", cfg.AIBaseURL)
	cfg.CalendarBaseURL = getEnv("CALENDAR_BASE_URL", cfg.CalendarBaseURL)
	cfg.CalendarToken = getEnv("CALENDAR_TOKEN", cfg.CalendarToken)
	cfg.CalendarID = getEnv("CALENDAR_ID", cfg.CalendarID)
	cfg.AuthJWKSURL = getEnv("AUTH_JWKS_URL", cfg.AuthJWKSURL)
	cfg.RateLimit = getEnv("RATE_LIMIT", cfg.RateLimit)
	cfg.OTELEnabled = getEnvBool("OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)
	cfg.DebugMode = getEnvBool("DEBUG_MODE", cfg.DebugMode)
	cfg.DevMode = getEnvBool("DEV_MODE", cfg.DevMode)

	switch cfg.RemoteStore {
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when REMOTE_STORE=redis")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when REMOTE_STORE=postgres")
		}
	case "memory":
		// In-process store, nothing to validate. Data does not survive
		// a restart.
	default:
		return nil, fmt.Errorf("unknown REMOTE_STORE %q (want redis, postgres or memory)", cfg.RemoteStore)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AIProviderConfig configures one OpenAI-compatible endpoint in the fallback chain
type AIProviderConfig struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string
}

// Config holds application configuration
type Config struct {
	DatabaseURL         string
	ServerPort          string
	BaseURL             string
	FrontendURL         string
	EnableHSTS          bool
	RedisURL            string
	SessionCacheTTL     time.Duration
	RealtimeChannel     string
	RabbitMQURL         string
	RabbitMQPrefetch    int
	JWTSecret           string
	JWTExpiresIn        time.Duration
	JWTRefreshExpiresIn time.Duration
	AIProviders         []AIProviderConfig
	AITimeout           time.Duration
	StaleSessionAfter   time.Duration
	SweepInterval       time.Duration
	WorkerDebugMode     bool
	ServerDebugMode     bool
	OTELEnabled         bool
	OTELEndpoint        string
}

// Default endpoints and models for the providers the coach knows by name.
// All of them speak the OpenAI chat completions protocol.
var knownProviders = map[string]AIProviderConfig{
	"gemini": {
		Model:   "gemini-1.5-flash",
		BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/",
	},
	"groq": {
		Model:   "llama3-8b-8192",
		BaseURL: "https://api.groq.com/openai/v1",
	},
	"openai": {
		Model:   "gpt-4o-mini",
		BaseURL: "https://api.openai.com/v1",
	},
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:          getEnvBool("ENABLE_HSTS", false),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionCacheTTL:     getEnvDuration("SESSION_CACHE_TTL", time.Hour),
		RealtimeChannel:     getEnv("REALTIME_CHANNEL", "cookmate:events"),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:    getEnvInt("RABBITMQ_PREFETCH", 1),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTExpiresIn:        getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour),
		JWTRefreshExpiresIn: getEnvDuration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour),
		AIProviders:         loadAIProviders(getEnv("AI_PROVIDERS", "gemini,groq")),
		AITimeout:           getEnvDuration("AI_TIMEOUT", 30*time.Second),
		StaleSessionAfter:   getEnvDuration("STALE_SESSION_AFTER", 6*time.Hour),
		SweepInterval:       getEnvDuration("SWEEP_INTERVAL", 15*time.Minute),
		WorkerDebugMode:     getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:     getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:         getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if cfg.SessionCacheTTL <= 0 {
		return nil, fmt.Errorf("SESSION_CACHE_TTL must be positive")
	}

	return cfg, nil
}

// LoadDatabaseURL reads only DATABASE_URL, for tools that never start the API
func LoadDatabaseURL() (string, error) {
	url := getEnv("DATABASE_URL", "")
	if url == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	return url, nil
}

// loadAIProviders builds the ordered provider list from AI_PROVIDERS.
// Providers without an API key are skipped.
func loadAIProviders(order string) []AIProviderConfig {
	var providers []AIProviderConfig
	for _, raw := range strings.Split(order, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		prefix := strings.ToUpper(name)
		defaults := knownProviders[name]
		p := AIProviderConfig{
			Name:    name,
			APIKey:  getEnv(prefix+"_API_KEY", ""),
			Model:   getEnv(prefix+"_MODEL", defaults.Model),
			BaseURL: getEnv(prefix+"_BASE_URL", defaults.BaseURL),
		}
		if p.APIKey == "" || p.BaseURL == "" {
			continue
		}
		providers = append(providers, p)
	}
	return providers
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

// getEnvDuration accepts Go durations ("90s", "1h") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

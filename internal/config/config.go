package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Turn dispatch
	UseMemoryQueue bool
	WorkerCount    int
	TurnQueueURL   string

	// AWS / Bedrock
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string

	// Gemini fallback
	GeminiAPIKey  string
	GeminiModelID string

	// Scheduling provider
	CalendlyAPIKey  string
	CalendlyBaseURL string
	CalendlyTimeout time.Duration

	// Clinic identity
	ClinicName  string
	ClinicPhone string
	Timezone    string

	// Session state
	SessionCapacity int
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool

	// Audit store
	DatabaseURL string

	// Knowledge lookup
	KnowledgeBaseURL string
	KnowledgeAPIKey  string

	// LLM tuning
	LLMMaxTokens   int
	LLMTemperature float64
	MaxToolRounds  int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		TurnQueueURL:   getEnv("TURN_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", "us.anthropic.claude-3-7-sonnet-20250219-v1:0"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		CalendlyAPIKey:  getEnv("CALENDLY_API_KEY", ""),
		CalendlyBaseURL: getEnv("CALENDLY_BASE_URL", "https://api.calendly.com"),
		CalendlyTimeout: getEnvAsDuration("CALENDLY_TIMEOUT", 30*time.Second),

		ClinicName:  getEnv("CLINIC_NAME", "HealthCare Plus Medical Center"),
		ClinicPhone: getEnv("CLINIC_PHONE", "(555) 123-4567"),
		Timezone:    getEnv("TIMEZONE", "Asia/Kolkata"),

		SessionCapacity: getEnvAsInt("SESSION_CAPACITY", 1000),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KnowledgeBaseURL: getEnv("KNOWLEDGE_BASE_URL", ""),
		KnowledgeAPIKey:  getEnv("KNOWLEDGE_API_KEY", ""),

		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 2000),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		MaxToolRounds:  getEnvAsInt("MAX_TOOL_ROUNDS", 8),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

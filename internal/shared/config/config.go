package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port              string
	DatabaseURL       string
	Env               string
	LLMProvider       string
	LLMModel          string
	OpenAIAPIKey      string
	ResearchAPIKey    string
	ResearchBaseURL   string
	ResearchMaxAge    time.Duration
	ModelConcurrency  int
	WorkerMaxAttempts int
	SQSQueueURL       string
	AWSRegion         string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	for _, path := range []string{".env", "cmd/.env"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       dbURL,
		Env:               env,
		LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		ResearchAPIKey:    os.Getenv("RESEARCH_API_KEY"),
		ResearchBaseURL:   getEnv("RESEARCH_BASE_URL", ""),
		ResearchMaxAge:    getEnvDuration("RESEARCH_CACHE_MAX_AGE", 6*time.Hour),
		ModelConcurrency:  getEnvInt("MODEL_CONCURRENCY", 3),
		WorkerMaxAttempts: getEnvInt("WORKER_MAX_ATTEMPTS", 3),
		SQSQueueURL:       os.Getenv("PM_SQS_QUEUE_URL"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config env %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

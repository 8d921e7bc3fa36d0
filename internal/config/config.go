package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config holds the server settings read from the environment. DATABASE_URL
// and JWT_SECRET are read directly by the db and auth packages.
type Config struct {
	Port        string
	CORSOrigins []string
	AdminSecret string

	LLMProvider      string
	OpenAIAPIKey     string
	OpenAIModel      string
	OllamaHost       string
	OllamaModel      string
	OllamaEmbedModel string
	AnalysisTimeout  time.Duration

	RefreshInterval  time.Duration
	RefreshBatchSize int
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] ignoring .env: %v", err)
	}

	analysisTimeout, err := getEnvDuration("ANALYSIS_TIMEOUT", 120*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse ANALYSIS_TIMEOUT: %w", err)
	}

	refreshInterval, err := getEnvDuration("BUCKET_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("parse BUCKET_REFRESH_INTERVAL: %w", err)
	}

	refreshBatch, err := getEnvInt("BUCKET_REFRESH_BATCH", 500)
	if err != nil {
		return Config{}, fmt.Errorf("parse BUCKET_REFRESH_BATCH: %w", err)
	}

	cfg := Config{
		Port:             getEnv("PORT", "8081"),
		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		AdminSecret:      strings.TrimSpace(os.Getenv("ADMIN_SECRET")),
		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.1"),
		OllamaEmbedModel: os.Getenv("OLLAMA_EMBED_MODEL"),
		AnalysisTimeout:  analysisTimeout,
		RefreshInterval:  refreshInterval,
		RefreshBatchSize: refreshBatch,
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderOllama, c.LLMProvider)
	}
	if c.AnalysisTimeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be positive")
	}
	if c.RefreshBatchSize <= 0 {
		return fmt.Errorf("BUCKET_REFRESH_BATCH must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

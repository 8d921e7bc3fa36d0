package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "CORS_ORIGINS", "ADMIN_SECRET", "LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL",
		"OLLAMA_HOST", "OLLAMA_MODEL", "OLLAMA_EMBED_MODEL", "ANALYSIS_TIMEOUT",
		"BUCKET_REFRESH_INTERVAL", "BUCKET_REFRESH_BATCH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8081" {
		t.Fatalf("expected port 8081, got %s", cfg.Port)
	}
	if cfg.LLMProvider != ProviderOpenAI {
		t.Fatalf("expected openai provider, got %s", cfg.LLMProvider)
	}
	if cfg.OpenAIModel != "gpt-4.1-mini" {
		t.Fatalf("expected default model, got %s", cfg.OpenAIModel)
	}
	if cfg.AnalysisTimeout != 120*time.Second {
		t.Fatalf("expected 120s timeout, got %s", cfg.AnalysisTimeout)
	}
	if cfg.RefreshInterval != time.Hour {
		t.Fatalf("expected hourly refresh, got %s", cfg.RefreshInterval)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 default origins, got %v", cfg.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "Ollama")
	t.Setenv("BUCKET_REFRESH_INTERVAL", "0")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("OPENAI_MODEL", "gpt-4.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLMProvider != ProviderOllama {
		t.Fatalf("expected ollama, got %s", cfg.LLMProvider)
	}
	if cfg.RefreshInterval != 0 {
		t.Fatalf("expected disabled refresh, got %s", cfg.RefreshInterval)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.OpenAIModel != "gpt-4.1" {
		t.Fatalf("expected model override, got %s", cfg.OpenAIModel)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"LLM_PROVIDER", "mystery"},
		{"ANALYSIS_TIMEOUT", "soon"},
		{"BUCKET_REFRESH_BATCH", "-1"},
		{"BUCKET_REFRESH_INTERVAL", "hourly"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

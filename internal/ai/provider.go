package ai

import (
	"fmt"

	"github.com/david/jd-copilot/internal/config"
)

// NewCompleter builds the configured analysis provider. For the openai
// provider a missing key yields ErrMissingCredential so callers can start
// without analysis and report the error per request.
func NewCompleter(cfg config.Config) (Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return NewOllamaClient(cfg.OllamaHost, cfg.OllamaEmbedModel, cfg.OllamaModel), nil
	case config.ProviderOpenAI, "":
		client, err := NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// NewEmbedder returns an Ollama embedder when an embedding model is
// configured, otherwise nil.
func NewEmbedder(cfg config.Config) Embedder {
	if cfg.OllamaEmbedModel == "" {
		return nil
	}
	return NewOllamaClient(cfg.OllamaHost, cfg.OllamaEmbedModel, cfg.OllamaModel)
}

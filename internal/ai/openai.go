package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const DefaultOpenAIModel = "gpt-4.1-mini"

// OpenAIClient talks to the chat completions API through langchaingo.
type OpenAIClient struct {
	Model string
	llm   llms.Model
}

// NewOpenAIClient fails with ErrMissingCredential when apiKey is empty.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingCredential
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("openai client init failed: %w", err)
	}

	return &OpenAIClient{Model: model, llm: llm}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (Completion, error) {
	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, system),
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		},
		llms.WithTemperature(Temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return Completion{}, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("openai returned no choices")
	}

	choice := resp.Choices[0]
	out := Completion{
		Text:             choice.Content,
		Model:            c.Model,
		PromptTokens:     tokenCount(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: tokenCount(choice.GenerationInfo, "CompletionTokens"),
		TotalTokens:      tokenCount(choice.GenerationInfo, "TotalTokens"),
	}
	if out.TotalTokens == 0 {
		out.TotalTokens = out.PromptTokens + out.CompletionTokens
	}
	return out, nil
}

func tokenCount(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

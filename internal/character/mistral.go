package character

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/Yates-Labs/storyrag/internal/rag"
)

// MistralLLM implements the LLM interface against Mistral's
// OpenAI-compatible chat completions endpoint.
type MistralLLM struct {
	client openai.Client
	config LLMConfig
}

// NewMistralLLM creates a Mistral-backed LLM implementation.
// Returns rag.ErrMissingAPIKey if no key is configured.
func NewMistralLLM(config LLMConfig) (*MistralLLM, error) {
	if config.APIKey == "" {
		return nil, rag.ErrMissingAPIKey
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}
	if config.BaseURL == "" {
		config.BaseURL = rag.DefaultBaseURL
	}

	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
		option.WithMaxRetries(0),
	)

	return &MistralLLM{
		client: client,
		config: config,
	}, nil
}

// Generate sends the prompt as a single user message and returns the reply text.
func (m *MistralLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(m.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(m.config.Temperature),
	}
	if m.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(m.config.MaxTokens))
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrLLMFailed)
	}

	return completion.Choices[0].Message.Content, nil
}

// Package character extracts structured character records from story excerpts.
// It builds the extraction prompt, calls a chat model through a
// provider-agnostic LLM interface, and parses the reply into CharacterInfo
// with a bounded fallback chain.
package character

import (
	"context"
	"errors"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

const (
	DefaultChatModel   = "mistral-large-latest"
	DefaultTemperature = 0.2
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces text from a prompt using the configured model.
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "mistral-large-latest")
	Model string

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float64

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL is the OpenAI-compatible endpoint (default: Mistral)
	BaseURL string
}

// DefaultLLMConfig returns the defaults used for character extraction.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       DefaultChatModel,
		Temperature: DefaultTemperature,
	}
}

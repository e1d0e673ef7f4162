package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Yates-Labs/storyrag/internal/character"
	"github.com/Yates-Labs/storyrag/internal/document"
	"github.com/Yates-Labs/storyrag/internal/rag"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvAPIKey         = "MISTRAL_API_KEY"
	EnvBaseURL        = "MISTRAL_BASE_URL"
	EnvStore          = "STORY_STORE"
	EnvEmbeddingsDir  = "STORY_EMBEDDINGS_DIR"
	EnvRequestsPerSec = "EMBED_REQUESTS_PER_SECOND"
)

const (
	DefaultTopK      = 3
	DefaultBatchSize = 16
)

// Config holds configuration for the story ingestion and extraction pipeline.
type Config struct {
	// APIKey authenticates both the embedding and chat requests
	APIKey string

	// BaseURL is the OpenAI-compatible endpoint used for both providers
	BaseURL string

	// ChunkSize and ChunkOverlap control document splitting, in characters
	ChunkSize    int
	ChunkOverlap int

	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// TopK is the number of chunks retrieved as context for a character
	TopK int

	Embedder rag.EmbedderConfig
	LLM      character.LLMConfig
	Store    rag.StoreConfig
}

// DefaultConfig returns the pipeline defaults without reading the environment.
func DefaultConfig() Config {
	return Config{
		BaseURL:      rag.DefaultBaseURL,
		ChunkSize:    document.DefaultChunkSize,
		ChunkOverlap: document.DefaultChunkOverlap,
		BatchSize:    DefaultBatchSize,
		TopK:         DefaultTopK,
		Embedder:     rag.DefaultEmbedderConfig(),
		LLM:          character.DefaultLLMConfig(),
		Store:        rag.DefaultStoreConfig(),
	}
}

// ConfigFromEnv returns DefaultConfig overridden by environment variables.
// Malformed numeric values are reported as errors.
func ConfigFromEnv() (Config, error) {
	config := DefaultConfig()

	config.APIKey = os.Getenv(EnvAPIKey)

	if v := os.Getenv(EnvBaseURL); v != "" {
		config.BaseURL = v
	}
	if v := os.Getenv(EnvStore); v != "" {
		config.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(EnvEmbeddingsDir); v != "" {
		config.Store.SQLite.Dir = v
	}
	if v := os.Getenv(EnvRequestsPerSec); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return config, fmt.Errorf("%w: %s must be a non-negative number, got %q", character.ErrInvalidConfig, EnvRequestsPerSec, v)
		}
		config.Embedder.RequestsPerSecond = rps
	}

	return config, nil
}

// Validate checks that the configuration can drive a pipeline.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return rag.ErrMissingAPIKey
	}
	if err := rag.ValidateBackend(c.Store.Backend); err != nil {
		return err
	}
	if _, err := document.NewSplitter(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: topk must be positive, got %d", character.ErrInvalidConfig, c.TopK)
	}
	return nil
}

// embedderConfig returns the embedding provider settings with shared credentials applied.
func (c Config) embedderConfig() rag.EmbedderConfig {
	cfg := c.Embedder
	cfg.APIKey = c.APIKey
	cfg.BaseURL = c.BaseURL
	return cfg
}

// llmConfig returns the chat provider settings with shared credentials applied.
func (c Config) llmConfig() character.LLMConfig {
	cfg := c.LLM
	cfg.APIKey = c.APIKey
	cfg.BaseURL = c.BaseURL
	return cfg
}

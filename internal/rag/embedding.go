package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// Common errors for embedding operations
var (
	ErrEmptyTexts      = errors.New("no texts provided for embedding")
	ErrMissingAPIKey   = errors.New("MISTRAL_API_KEY environment variable not set")
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

const (
	DefaultBaseURL            = "https://api.mistral.ai/v1/"
	DefaultEmbeddingModel     = "mistral-embed"
	DefaultEmbeddingDimension = 1024
)

// EmbeddingRecord represents a single text embedding with metadata
type EmbeddingRecord struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
	Model     string    `json:"model"`
}

// Embedder defines the interface for generating text embeddings
type Embedder interface {
	// Embed generates embeddings for the provided texts
	Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error)

	// GetModel returns the embedding model identifier
	GetModel() string

	// GetDimension returns the embedding vector dimension
	GetDimension() int
}

// EmbedderConfig configures the hosted embedding provider.
type EmbedderConfig struct {
	APIKey    string
	BaseURL   string // OpenAI-compatible endpoint (default: Mistral)
	Model     string
	Dimension int

	// RequestsPerSecond paces embedding requests (0 = unlimited)
	RequestsPerSecond float64
}

// DefaultEmbedderConfig returns the Mistral embedding defaults.
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		BaseURL:           DefaultBaseURL,
		Model:             DefaultEmbeddingModel,
		Dimension:         DefaultEmbeddingDimension,
		RequestsPerSecond: 1,
	}
}

// MistralEmbedder implements the Embedder interface against Mistral's
// OpenAI-compatible embeddings endpoint
type MistralEmbedder struct {
	client    openai.Client
	model     string
	dimension int
	limiter   *rate.Limiter
}

// NewMistralEmbedder creates a new embedder instance
func NewMistralEmbedder(config EmbedderConfig) (*MistralEmbedder, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, config.Dimension)
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultEmbeddingModel
	}

	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
		option.WithMaxRetries(0),
	)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &MistralEmbedder{
		client:    client,
		model:     config.Model,
		dimension: config.Dimension,
		limiter:   limiter,
	}, nil
}

// GetModel returns the embedding model identifier
func (e *MistralEmbedder) GetModel() string {
	return e.model
}

// GetDimension returns the embedding vector dimension
func (e *MistralEmbedder) GetDimension() int {
	return e.dimension
}

// Embed generates embeddings for the provided texts with a single request
func (e *MistralEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(texts), len(resp.Data))
	}

	records := make([]EmbeddingRecord, len(texts))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, idx)
		}
		if len(data.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, e.dimension, len(data.Embedding))
		}

		// Convert []float64 to []float32
		embedding := make([]float32, len(data.Embedding))
		for j, val := range data.Embedding {
			embedding[j] = float32(val)
		}

		records[idx] = EmbeddingRecord{
			Text:      texts[idx],
			Embedding: embedding,
			Index:     idx,
			Model:     e.model,
		}
	}

	return records, nil
}

package rag

import (
	"context"
	"errors"
)

var (
	ErrNoMatches    = errors.New("no relevant documents found")
	ErrUnknownStore = errors.New("unknown vector store backend")
)

// Passage is a chunk of story text waiting to be embedded.
type Passage struct {
	Source string `json:"source"`
	Index  int    `json:"index"`
	Start  int    `json:"start"`
	Text   string `json:"text"`
}

// ChunkRecord is a passage together with its embedding, as persisted in a VectorStore.
type ChunkRecord struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Index     int       `json:"index"`
	Start     int       `json:"start"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// ContextChunk represents a retrieved passage with similarity score
// Used to give the LLM story context for a query
type ContextChunk struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Index  int     `json:"index"`
	Start  int     `json:"start"`
	Text   string  `json:"text"`
	Score  float32 `json:"score"` // Cosine similarity, higher is closer
}

// SearchOptions provides filtering options for vector search
type SearchOptions struct {
	Sources []string `json:"sources,omitempty"` // Restrict results to these story files
}

// VectorStore defines the interface for chunk storage and similarity search
type VectorStore interface {
	// Insert stores records in a single operation
	Insert(ctx context.Context, records []ChunkRecord) error

	// Flush ensures all pending data is persisted
	Flush(ctx context.Context) error

	// Search performs top-K similarity search with optional filtering
	Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error)

	// DeleteSources removes every record that came from the given story files
	DeleteSources(ctx context.Context, sources []string) error

	// Reset removes all records
	Reset(ctx context.Context) error

	// GetStats returns collection statistics (record count, location, etc.)
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close releases resources and closes connections
	Close() error
}

// SourceReplacer is implemented by stores that can swap the chunks of a set
// of story files in one atomic operation
type SourceReplacer interface {
	ReplaceSources(ctx context.Context, sources []string, records []ChunkRecord) error
}

// IndexOptions provides configuration for chunk indexing
type IndexOptions struct {
	// BatchSize determines how many chunks to embed at once
	BatchSize int

	// ReplaceSources deletes previously stored chunks of the same story files
	// once every new embedding has been produced
	ReplaceSources bool
}

package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Common errors for vector store operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrEmptyRecords     = errors.New("no records provided for insertion")
	ErrConnectionFailed = errors.New("failed to connect to vector store")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
)

const (
	StoreSQLite = "sqlite"
	StoreMilvus = "milvus"
	StoreQdrant = "qdrant"
)

// StoreConfig selects and configures a VectorStore backend.
type StoreConfig struct {
	Backend string // sqlite (default), milvus or qdrant

	SQLite SQLiteConfig
	Milvus MilvusConfig
	Qdrant QdrantConfig
}

// DefaultStoreConfig returns the local on-disk store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Backend: StoreSQLite,
		SQLite:  DefaultSQLiteConfig(),
		Milvus:  DefaultMilvusConfig(),
		Qdrant:  DefaultQdrantConfig(),
	}
}

// ValidateBackend checks that backend names a supported store.
func ValidateBackend(backend string) error {
	switch strings.ToLower(backend) {
	case "", StoreSQLite, StoreMilvus, StoreQdrant:
		return nil
	default:
		return fmt.Errorf("%w: %q (supported: sqlite, milvus, qdrant)", ErrUnknownStore, backend)
	}
}

// OpenStore opens the configured backend. dimension is the embedding size
// of the embedder the store will be used with.
func OpenStore(ctx context.Context, config StoreConfig, dimension int) (VectorStore, error) {
	if err := ValidateBackend(config.Backend); err != nil {
		return nil, err
	}

	switch strings.ToLower(config.Backend) {
	case StoreMilvus:
		cfg := config.Milvus
		cfg.Dimension = dimension
		return NewMilvusStore(ctx, cfg)
	case StoreQdrant:
		cfg := config.Qdrant
		cfg.Dimension = dimension
		return NewQdrantStore(ctx, cfg)
	default:
		cfg := config.SQLite
		cfg.Dimension = dimension
		return NewSQLiteStore(ctx, cfg)
	}
}

// cosineSimilarity returns 0 for mismatched or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

package rag

import (
	"context"
	"fmt"
)

// Retriever provides high-level semantic retrieval over stored story chunks.
type Retriever struct {
	embedder    Embedder
	vectorStore VectorStore
}

// NewRetriever creates a new Retriever instance.
func NewRetriever(embedder Embedder, vectorStore VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}

	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
	}, nil
}

// RetrieveContextForQuery performs semantic search using a free-text query.
// An empty result is not an error here; callers decide how to treat it.
func (r *Retriever) RetrieveContextForQuery(
	ctx context.Context,
	query string,
	topK int,
	opts *SearchOptions,
) ([]ContextChunk, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	embeddingRecords, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddingRecords) == 0 {
		return nil, fmt.Errorf("%w: no embedding generated for query", ErrEmbeddingFailed)
	}

	chunks, err := r.vectorStore.Search(ctx, embeddingRecords[0].Embedding, topK, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search for query: %w", err)
	}

	return chunks, nil
}

// RetrieveContextForSources is a convenience wrapper restricting the search to given story files.
func (r *Retriever) RetrieveContextForSources(
	ctx context.Context,
	query string,
	topK int,
	sources []string,
) ([]ContextChunk, error) {
	opts := &SearchOptions{}
	if len(sources) > 0 {
		opts.Sources = sources
	}
	return r.RetrieveContextForQuery(ctx, query, topK, opts)
}

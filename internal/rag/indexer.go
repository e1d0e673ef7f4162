package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DefaultIndexOptions returns sensible defaults for indexing
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BatchSize:      16, // Keeps each embedding request well under the provider's token limit
		ReplaceSources: true,
	}
}

// IndexPassages embeds passages and stores them in the vector store.
// This function:
// 1. Generates embeddings for every passage in batches
// 2. Optionally deletes chunks previously stored for the same story files
// 3. Inserts each batch with a fresh chunk ID and flushes it
// Nothing is deleted or written until all embeddings succeed. Stores that
// implement SourceReplacer swap a story's chunks atomically.
// It returns the number of records written. Any failure aborts the run.
func IndexPassages(
	ctx context.Context,
	passages []Passage,
	embedder Embedder,
	vectorStore VectorStore,
	opts IndexOptions,
) (int, error) {
	if len(passages) == 0 {
		return 0, nil
	}

	if embedder == nil {
		return 0, fmt.Errorf("embedder cannot be nil")
	}

	if vectorStore == nil {
		return 0, fmt.Errorf("vector store cannot be nil")
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}

	var batches [][]ChunkRecord
	for batchStart := 0; batchStart < len(passages); batchStart += opts.BatchSize {
		batchEnd := batchStart + opts.BatchSize
		if batchEnd > len(passages) {
			batchEnd = len(passages)
		}

		records, err := embedBatch(ctx, embedder, passages[batchStart:batchEnd])
		if err != nil {
			return 0, fmt.Errorf("failed to generate embeddings for batch starting at %d: %w", batchStart, err)
		}
		batches = append(batches, records)
	}

	if opts.ReplaceSources {
		if replacer, ok := vectorStore.(SourceReplacer); ok {
			var all []ChunkRecord
			for _, b := range batches {
				all = append(all, b...)
			}
			if err := replacer.ReplaceSources(ctx, uniqueSources(passages), all); err != nil {
				return 0, fmt.Errorf("failed to replace chunks: %w", err)
			}
			if err := vectorStore.Flush(ctx); err != nil {
				return 0, fmt.Errorf("failed to flush chunks: %w", err)
			}
			return len(all), nil
		}

		if err := vectorStore.DeleteSources(ctx, uniqueSources(passages)); err != nil {
			return 0, fmt.Errorf("failed to delete existing chunks: %w", err)
		}
	}

	indexed := 0
	for i, records := range batches {
		batchStart := i * opts.BatchSize

		if err := vectorStore.Insert(ctx, records); err != nil {
			return indexed, fmt.Errorf("failed to insert batch starting at %d: %w", batchStart, err)
		}

		if err := vectorStore.Flush(ctx); err != nil {
			return indexed, fmt.Errorf("failed to flush batch starting at %d: %w", batchStart, err)
		}

		indexed += len(records)
	}

	return indexed, nil
}

// embedBatch embeds one batch of passages into records with fresh IDs
func embedBatch(ctx context.Context, embedder Embedder, batch []Passage) ([]ChunkRecord, error) {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.Text
	}

	embeddingRecords, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddingRecords) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(batch), len(embeddingRecords))
	}

	records := make([]ChunkRecord, len(batch))
	for i, p := range batch {
		records[i] = ChunkRecord{
			ID:        uuid.NewString(),
			Source:    p.Source,
			Index:     p.Index,
			Start:     p.Start,
			Text:      p.Text,
			Embedding: embeddingRecords[i].Embedding,
			Model:     embeddingRecords[i].Model,
		}
	}
	return records, nil
}

// uniqueSources returns the distinct story files in first-seen order
func uniqueSources(passages []Passage) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, p := range passages {
		if _, ok := seen[p.Source]; ok {
			continue
		}
		seen[p.Source] = struct{}{}
		sources = append(sources, p.Source)
	}
	return sources
}

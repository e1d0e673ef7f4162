package rag

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDefaultQdrantConfig(t *testing.T) {
	t.Setenv("QDRANT_ADDRESS", "")
	t.Setenv("QDRANT_COLLECTION", "")

	config := DefaultQdrantConfig()
	if config.Address != "localhost:6334" {
		t.Errorf("expected localhost:6334, got %s", config.Address)
	}
	if config.CollectionName != "story_chunks" {
		t.Errorf("expected story_chunks, got %s", config.CollectionName)
	}
	if config.Dimension != DefaultEmbeddingDimension {
		t.Errorf("expected dimension %d, got %d", DefaultEmbeddingDimension, config.Dimension)
	}
}

func TestQdrantStore_ValidatesWithoutServer(t *testing.T) {
	store := &QdrantStore{config: QdrantConfig{Dimension: 4}}
	ctx := context.Background()

	if err := store.Insert(ctx, nil); err != ErrEmptyRecords {
		t.Errorf("expected ErrEmptyRecords, got %v", err)
	}

	err := store.Insert(ctx, []ChunkRecord{{ID: uuid.NewString(), Embedding: []float32{1}}})
	if !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("expected ErrInvalidDimension, got %v", err)
	}

	if _, err := store.Search(ctx, []float32{1, 2, 3}, 3, nil); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("expected ErrInvalidDimension, got %v", err)
	}

	if err := store.DeleteSources(ctx, nil); err != nil {
		t.Errorf("expected no-op for empty sources, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("close without connection: %v", err)
	}
}

func TestSourceFilter(t *testing.T) {
	filter := sourceFilter([]string{"a.txt", "b.txt"})

	if len(filter.GetShould()) != 2 {
		t.Fatalf("expected 2 should conditions, got %d", len(filter.GetShould()))
	}
	for i, want := range []string{"a.txt", "b.txt"} {
		field := filter.GetShould()[i].GetField()
		if field.GetKey() != "source" {
			t.Errorf("condition %d key = %s", i, field.GetKey())
		}
		if got := field.GetMatch().GetKeyword(); got != want {
			t.Errorf("condition %d keyword = %s, want %s", i, got, want)
		}
	}
}

func TestQdrantStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	if os.Getenv("QDRANT_ADDRESS") == "" {
		t.Skip("QDRANT_ADDRESS not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	config := DefaultQdrantConfig()
	config.Dimension = 64
	config.CollectionName = "storyrag_test_integration"

	store, err := NewQdrantStore(ctx, config)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	embedder := NewMockEmbedder(config.Dimension)
	passages := []Passage{
		{Source: "wonderland.txt", Text: "Alice followed the white rabbit"},
		{Source: "pirates.txt", Text: "The captain buried the treasure"},
	}
	if _, err := IndexPassages(ctx, passages, embedder, store, DefaultIndexOptions()); err != nil {
		t.Fatalf("failed to index: %v", err)
	}

	retriever, _ := NewRetriever(embedder, store)
	chunks, err := retriever.RetrieveContextForSources(ctx, "captain treasure", 3, []string{"pirates.txt"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "The captain buried the treasure" {
		t.Errorf("unexpected results %+v", chunks)
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats["row_count"] != uint64(2) {
		t.Errorf("expected 2 points, got %v", stats["row_count"])
	}
}

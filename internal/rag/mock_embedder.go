package rag

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// MockEmbedder is a deterministic Embedder for testing.
// Each text becomes a bag-of-words vector: every lower-cased word is hashed
// into one of Dimension buckets, so texts sharing words score as similar.
type MockEmbedder struct {
	Dimension int

	// Error, if set, is returned by Embed instead of embeddings once
	// ErrorAfter calls have succeeded.
	Error      error
	ErrorAfter int

	// Calls counts Embed invocations; Texts collects every text embedded.
	Calls int
	Texts []string
}

// NewMockEmbedder creates a mock embedder with the given vector dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{Dimension: dimension}
}

// GetModel returns the mock model identifier
func (m *MockEmbedder) GetModel() string {
	return "mock-embed"
}

// GetDimension returns the embedding vector dimension
func (m *MockEmbedder) GetDimension() int {
	return m.Dimension
}

// Embed returns one hashed bag-of-words vector per text.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	m.Calls++
	if m.Error != nil && m.Calls > m.ErrorAfter {
		return nil, m.Error
	}
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	records := make([]EmbeddingRecord, len(texts))
	for i, text := range texts {
		m.Texts = append(m.Texts, text)
		records[i] = EmbeddingRecord{
			Text:      text,
			Embedding: m.vectorize(text),
			Index:     i,
			Model:     m.GetModel(),
		}
	}
	return records, nil
}

func (m *MockEmbedder) vectorize(text string) []float32 {
	vec := make([]float32, m.Dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(m.Dimension)]++
	}
	return vec
}

package document

import (
	"errors"
	"fmt"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of characters shared by consecutive chunks.
	DefaultChunkOverlap = 200
)

var ErrInvalidSplitter = errors.New("invalid splitter configuration")

// Splitter cuts text into fixed-size character windows. Consecutive windows
// start ChunkSize-ChunkOverlap characters apart and the last window always
// ends at the end of the text.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewSplitter validates the window parameters.
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidSplitter, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidSplitter, chunkSize, chunkOverlap)
	}
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// DefaultSplitter returns a splitter with DefaultChunkSize and DefaultChunkOverlap.
func DefaultSplitter() *Splitter {
	return &Splitter{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap}
}

// Split returns the chunks of a single text. Offsets are counted in runes so
// multi-byte characters are never cut in half.
func (s *Splitter) Split(source, text string) []TextChunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.ChunkOverlap
	var chunks []TextChunk
	for start := 0; ; start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, TextChunk{
			Source: source,
			Index:  len(chunks),
			Start:  start,
			Text:   string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
	}
	return chunks
}

// SplitDocuments splits every document, preserving document order.
func (s *Splitter) SplitDocuments(docs []StoryDocument) []TextChunk {
	var chunks []TextChunk
	for _, doc := range docs {
		chunks = append(chunks, s.Split(doc.Source, doc.Content)...)
	}
	return chunks
}

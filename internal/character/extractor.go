package character

import (
	"context"
	"errors"
	"fmt"
)

var ErrExtractionFailed = errors.New("character extraction failed")

// Extractor turns an assembled prompt into a CharacterInfo using an LLM.
// It performs no retrieval or prompt construction.
type Extractor struct {
	llm    LLM
	config LLMConfig
}

// NewExtractor creates an extractor with the given LLM implementation.
func NewExtractor(llm LLM, config LLMConfig) *Extractor {
	return &Extractor{
		llm:    llm,
		config: config,
	}
}

// Model returns the configured chat model name.
func (e *Extractor) Model() string {
	return e.config.Model
}

// Extract invokes the LLM with prompt and parses its reply.
// LLM failures are returned wrapped in ErrExtractionFailed; parse failures
// keep their own sentinel (ErrUnparseableResponse or ErrInvalidCharacterInfo).
func (e *Extractor) Extract(ctx context.Context, prompt string) (*CharacterInfo, error) {
	if e.llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrExtractionFailed)
	}
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrExtractionFailed)
	}

	reply, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: LLM invocation failed: %w", ErrExtractionFailed, err)
	}

	return ParseCharacterInfo(reply)
}

// Package orchestrator wires document loading, embedding, vector storage,
// retrieval and character extraction into the two end-to-end operations
// exposed by the CLI.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Yates-Labs/storyrag/internal/character"
	"github.com/Yates-Labs/storyrag/internal/document"
	"github.com/Yates-Labs/storyrag/internal/rag"
)

var ErrNoDocuments = errors.New("no story documents found")

const tracerName = "github.com/Yates-Labs/storyrag/internal/orchestrator"

// IngestOptions controls a ComputeEmbeddings run.
type IngestOptions struct {
	// Reset clears the vector store before ingesting
	Reset bool
}

// IngestReport summarizes a ComputeEmbeddings run.
type IngestReport struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Indexed   int           `json:"indexed"`
	Sources   []string      `json:"sources"`
	Duration  time.Duration `json:"duration"`
}

// QueryOptions controls a GetCharacterInfo call.
type QueryOptions struct {
	// TopK overrides the configured number of retrieved chunks (0 = config default)
	TopK int

	// Sources restricts retrieval to the given story files
	Sources []string
}

// Pipeline orchestrates ingestion and character extraction.
type Pipeline struct {
	config    Config
	logger    *slog.Logger
	tracer    trace.Tracer
	loader    *document.Loader
	splitter  *document.Splitter
	embedder  rag.Embedder
	store     rag.VectorStore
	retriever *rag.Retriever
	extractor *character.Extractor
}

// NewPipeline validates config and connects the Mistral providers and the
// configured vector store.
func NewPipeline(ctx context.Context, config Config, logger *slog.Logger) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := rag.NewMistralEmbedder(config.embedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	llm, err := character.NewMistralLLM(config.llmConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}

	store, err := rag.OpenStore(ctx, config.Store, embedder.GetDimension())
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	p, err := NewPipelineWith(config, logger, embedder, store, llm)
	if err != nil {
		store.Close()
		return nil, err
	}
	return p, nil
}

// NewPipelineWith builds a pipeline around already constructed components.
// The API key is not required here.
func NewPipelineWith(config Config, logger *slog.Logger, embedder rag.Embedder, store rag.VectorStore, llm character.LLM) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}

	splitter, err := document.NewSplitter(config.ChunkSize, config.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	retriever, err := rag.NewRetriever(embedder, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	return &Pipeline{
		config:    config,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		loader:    document.NewLoader(logger),
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		retriever: retriever,
		extractor: character.NewExtractor(llm, config.llmConfig()),
	}, nil
}

// Close releases resources held by the pipeline.
func (p *Pipeline) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// ComputeEmbeddings loads every story in datasetPath, splits it into
// overlapping chunks and stores their embeddings. Chunks previously stored
// for the same story files are replaced.
func (p *Pipeline) ComputeEmbeddings(ctx context.Context, datasetPath string, opts IngestOptions) (*IngestReport, error) {
	ctx, span := p.tracer.Start(ctx, "ComputeEmbeddings", trace.WithAttributes(attribute.String("dataset", datasetPath)))
	defer span.End()

	report, err := p.computeEmbeddings(ctx, datasetPath, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("failed to compute embeddings", "dataset", datasetPath, "error", err)
		return nil, err
	}
	return report, nil
}

func (p *Pipeline) computeEmbeddings(ctx context.Context, datasetPath string, opts IngestOptions) (*IngestReport, error) {
	start := time.Now()
	report := &IngestReport{}

	var docs []document.StoryDocument
	err := p.stage(ctx, "load", func(ctx context.Context) error {
		var err error
		docs, err = p.loader.Load(datasetPath)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, datasetPath)
	}
	report.Documents = len(docs)
	for _, d := range docs {
		report.Sources = append(report.Sources, d.Source)
	}
	p.logger.Info("loaded stories", "dataset", datasetPath, "documents", len(docs))

	if opts.Reset {
		err := p.stage(ctx, "reset", func(ctx context.Context) error {
			return p.store.Reset(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reset vector store: %w", err)
		}
		p.logger.Info("cleared vector store")
	}

	var chunks []document.TextChunk
	err = p.stage(ctx, "split", func(ctx context.Context) error {
		chunks = p.splitter.SplitDocuments(docs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.Chunks = len(chunks)
	p.logger.Debug("split stories", "chunks", len(chunks),
		"chunk_size", p.splitter.ChunkSize, "chunk_overlap", p.splitter.ChunkOverlap)

	passages := make([]rag.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = rag.Passage{
			Source: c.Source,
			Index:  c.Index,
			Start:  c.Start,
			Text:   c.Text,
		}
	}

	indexOpts := rag.DefaultIndexOptions()
	if p.config.BatchSize > 0 {
		indexOpts.BatchSize = p.config.BatchSize
	}

	err = p.stage(ctx, "embed_and_store", func(ctx context.Context) error {
		n, err := rag.IndexPassages(ctx, passages, p.embedder, p.store, indexOpts)
		report.Indexed = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}

	report.Duration = time.Since(start)
	p.logger.Info("computed embeddings", "documents", report.Documents, "chunks", report.Chunks,
		"indexed", report.Indexed, "model", p.embedder.GetModel(), "duration", report.Duration)

	return report, nil
}

// GetCharacterInfo retrieves the passages most relevant to name, asks the
// chat model for a character record and parses it. When nothing is
// retrieved it returns rag.ErrNoMatches without calling the chat model.
func (p *Pipeline) GetCharacterInfo(ctx context.Context, name string, opts QueryOptions) (*character.CharacterInfo, error) {
	ctx, span := p.tracer.Start(ctx, "GetCharacterInfo", trace.WithAttributes(attribute.String("character", name)))
	defer span.End()

	info, err := p.getCharacterInfo(ctx, name, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("failed to retrieve character information", "character", name, "error", err)
		return nil, err
	}
	return info, nil
}

func (p *Pipeline) getCharacterInfo(ctx context.Context, name string, opts QueryOptions) (*character.CharacterInfo, error) {
	if strings.TrimSpace(name) == "" {
		return nil, character.ErrMissingCharacterName
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = p.config.TopK
	}

	query := character.BuildQuery(name)

	var chunks []rag.ContextChunk
	err := p.stage(ctx, "retrieve", func(ctx context.Context) error {
		var err error
		chunks, err = p.retriever.RetrieveContextForSources(ctx, query, topK, opts.Sources)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w for character %s", rag.ErrNoMatches, name)
	}
	p.logger.Debug("retrieved context", "character", name, "chunks", len(chunks), "top_score", chunks[0].Score)

	prompt, err := character.AssemblePrompt(name, chunks)
	if err != nil {
		return nil, err
	}

	var info *character.CharacterInfo
	err = p.stage(ctx, "generate", func(ctx context.Context) error {
		var err error
		info, err = p.extractor.Extract(ctx, prompt)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("extracted character", "character", info.Name, "story", info.StoryTitle,
		"relations", len(info.Relations), "model", p.extractor.Model())
	return info, nil
}

// Stats returns vector store statistics.
func (p *Pipeline) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := p.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	stats["embedding_model"] = p.embedder.GetModel()
	stats["dimension"] = p.embedder.GetDimension()
	return stats, nil
}

// StoreStats opens only the configured vector store and returns its
// statistics. No provider is built, so no API key is needed.
func StoreStats(ctx context.Context, config Config) (map[string]interface{}, error) {
	if err := rag.ValidateBackend(config.Store.Backend); err != nil {
		return nil, err
	}

	store, err := rag.OpenStore(ctx, config.Store, config.Embedder.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	defer store.Close()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	stats["embedding_model"] = config.Embedder.Model
	stats["dimension"] = config.Embedder.Dimension
	return stats, nil
}

// stage runs fn inside a child span, recording any error on it.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

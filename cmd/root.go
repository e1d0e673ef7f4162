package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/storyrag/internal/character"
	"github.com/Yates-Labs/storyrag/internal/orchestrator"
)

var (
	storeBackend string
	verbose      bool
	strict       bool
)

// pipelineRunner is the subset of the orchestrator pipeline used by commands
type pipelineRunner interface {
	ComputeEmbeddings(ctx context.Context, datasetPath string, opts orchestrator.IngestOptions) (*orchestrator.IngestReport, error)
	GetCharacterInfo(ctx context.Context, name string, opts orchestrator.QueryOptions) (*character.CharacterInfo, error)
	Close() error
}

// newPipeline is replaced in tests
var newPipeline = func(ctx context.Context, config orchestrator.Config, logger *slog.Logger) (pipelineRunner, error) {
	p, err := orchestrator.NewPipeline(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// storeStats is replaced in tests
var storeStats = orchestrator.StoreStats

var rootCmd = &cobra.Command{
	Use:   "storyrag",
	Short: "StoryRAG - Character extraction from story collections",
	Long: `StoryRAG embeds a directory of plain-text stories into a vector store and
answers questions about characters by retrieving the most relevant passages
and asking a Mistral chat model for a structured JSON profile.

Required environment variables:
  MISTRAL_API_KEY    - Mistral API key for embeddings and chat

Optional environment variables:
  STORY_STORE                - Vector store backend: sqlite (default), milvus, qdrant
  STORY_EMBEDDINGS_DIR       - Local store directory (default: ./story_embeddings)
  MILVUS_ADDRESS             - Milvus server address (default: localhost:19530)
  QDRANT_ADDRESS             - Qdrant gRPC address (default: localhost:6334)
  EMBED_REQUESTS_PER_SECOND  - Embedding request pacing (default: 1)

A .env file in the working directory is loaded first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "Vector store backend: sqlite, milvus or qdrant (overrides STORY_STORE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Exit with a non-zero status when a command fails")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the structured logger shared by all components
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the environment and applies persistent flag overrides
func loadConfig() (orchestrator.Config, error) {
	config, err := orchestrator.ConfigFromEnv()
	if err != nil {
		return config, err
	}
	if storeBackend != "" {
		config.Store.Backend = strings.ToLower(storeBackend)
	}
	return config, nil
}

// openPipeline loads configuration and connects the pipeline for cmd
func openPipeline(cmd *cobra.Command) (pipelineRunner, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newPipeline(cmd.Context(), config, newLogger(cmd.ErrOrStderr()))
}

// reportError prints err as "Error: <message>" on stdout. The command then
// succeeds unless --strict was given.
func reportError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", errorStyle.Render("Error:"), err)
	if strict {
		return err
	}
	return nil
}

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/storyrag/internal/orchestrator"
)

var resetStore bool

var computeEmbeddingsCmd = &cobra.Command{
	Use:     "compute-embeddings [dataset_path]",
	Aliases: []string{"compute-embeddings-cli"},
	Short:   "Compute embeddings for all story files in a directory",
	Long: `Load every .txt story in dataset_path, split it into overlapping chunks
of 1000 characters (200 overlap) and store the chunk embeddings in the
vector store. Files that are not valid UTF-8 are skipped with a warning.

Re-ingesting a story replaces its previously stored chunks.

Examples:
  storyrag compute-embeddings ./stories
  storyrag compute-embeddings ./stories --reset
  storyrag compute-embeddings ./stories --store milvus`,
	Args: cobra.ExactArgs(1),
	RunE: runComputeEmbeddings,
}

func init() {
	rootCmd.AddCommand(computeEmbeddingsCmd)
	computeEmbeddingsCmd.Flags().BoolVar(&resetStore, "reset", false, "Clear the vector store before ingesting")
}

func runComputeEmbeddings(cmd *cobra.Command, args []string) error {
	datasetPath := args[0]
	out := cmd.OutOrStdout()

	pipeline, err := openPipeline(cmd)
	if err != nil {
		return reportError(cmd, err)
	}
	defer pipeline.Close()

	if verbose {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("→ Computing embeddings for %s...", datasetPath)))
	}

	report, err := pipeline.ComputeEmbeddings(cmd.Context(), datasetPath, orchestrator.IngestOptions{Reset: resetStore})
	if err != nil {
		return reportError(cmd, err)
	}

	if verbose {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("  stories: %s", strings.Join(report.Sources, ", "))))
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Embedded %d chunks from %d stories in %s",
		report.Indexed, report.Documents, report.Duration.Round(time.Millisecond))))
	fmt.Fprintln(out, "Embeddings computed and stored successfully.")

	return nil
}

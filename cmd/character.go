package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/storyrag/internal/character"
	"github.com/Yates-Labs/storyrag/internal/orchestrator"
)

var (
	topK       int
	outputFile string
	stories    []string
)

var getCharacterInfoCmd = &cobra.Command{
	Use:     "get-character-info [character_name]",
	Aliases: []string{"get-character-info-cli"},
	Short:   "Retrieve structured information about a character",
	Long: `Retrieve the story passages most relevant to a character and ask the chat
model for a JSON profile with the fields name, storyTitle, summary,
relations and characterType.

Embeddings must have been computed first with compute-embeddings.

Examples:
  storyrag get-character-info "Captain Hook"
  storyrag get-character-info Alice --topk 5
  storyrag get-character-info Alice --story wonderland.txt --output alice.json`,
	Args: cobra.ExactArgs(1),
	RunE: runGetCharacterInfo,
}

func init() {
	rootCmd.AddCommand(getCharacterInfoCmd)
	getCharacterInfoCmd.Flags().IntVar(&topK, "topk", orchestrator.DefaultTopK, "Number of story chunks to retrieve as context")
	getCharacterInfoCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the JSON profile to a file: --output <filename>")
	getCharacterInfoCmd.Flags().StringSliceVar(&stories, "story", nil, "Restrict retrieval to these story files (repeatable)")
}

func runGetCharacterInfo(cmd *cobra.Command, args []string) error {
	name := args[0]
	out := cmd.OutOrStdout()

	if topK <= 0 {
		return reportError(cmd, fmt.Errorf("%w: --topk must be positive, got %d", character.ErrInvalidConfig, topK))
	}

	pipeline, err := openPipeline(cmd)
	if err != nil {
		return reportError(cmd, err)
	}
	defer pipeline.Close()

	if verbose {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("→ Retrieving top-%d passages for %s...", topK, name)))
	}

	info, err := pipeline.GetCharacterInfo(cmd.Context(), name, orchestrator.QueryOptions{
		TopK:    topK,
		Sources: stories,
	})
	if err != nil {
		return reportError(cmd, err)
	}

	if outputFile != "" {
		if err := character.ExportToJSON(info, outputFile); err != nil {
			return reportError(cmd, err)
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Exported %s to %s", info.Name, outputFile)))
		return nil
	}

	data, err := character.MarshalIndent(info)
	if err != nil {
		return reportError(cmd, err)
	}
	fmt.Fprintln(out, string(data))

	return nil
}

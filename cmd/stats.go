package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector store statistics",
	Long: `Show the configured vector store backend, its location and the number of
stored chunks. Only the store is opened, so MISTRAL_API_KEY is not required.

Examples:
  storyrag stats
  storyrag stats --store qdrant`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	config, err := loadConfig()
	if err != nil {
		return reportError(cmd, err)
	}

	stats, err := storeStats(cmd.Context(), config)
	if err != nil {
		return reportError(cmd, err)
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(out, headerStyle.Render("Vector Store"))
	for _, k := range keys {
		fmt.Fprintf(out, "  %s %s\n", keyStyle.Render(k+":"), valueStyle.Render(fmt.Sprint(stats[k])))
	}

	return nil
}

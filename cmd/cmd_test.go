package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Yates-Labs/storyrag/internal/character"
	"github.com/Yates-Labs/storyrag/internal/orchestrator"
	"github.com/Yates-Labs/storyrag/internal/rag"
)

// fakePipeline implements pipelineRunner for command tests
type fakePipeline struct {
	report *orchestrator.IngestReport
	info   *character.CharacterInfo
	stats  map[string]interface{}
	err    error

	ingestOpts orchestrator.IngestOptions
	queryName  string
	queryOpts  orchestrator.QueryOptions
	closed     bool
}

func (f *fakePipeline) ComputeEmbeddings(ctx context.Context, datasetPath string, opts orchestrator.IngestOptions) (*orchestrator.IngestReport, error) {
	f.ingestOpts = opts
	return f.report, f.err
}

func (f *fakePipeline) GetCharacterInfo(ctx context.Context, name string, opts orchestrator.QueryOptions) (*character.CharacterInfo, error) {
	f.queryName = name
	f.queryOpts = opts
	return f.info, f.err
}

func (f *fakePipeline) Close() error {
	f.closed = true
	return nil
}

// resetFlags restores every flag to its default between executions
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with fake as the pipeline
func executeCommand(t *testing.T, fake *fakePipeline, args ...string) (string, *orchestrator.Config, error) {
	t.Helper()

	var captured *orchestrator.Config
	original := newPipeline
	newPipeline = func(ctx context.Context, config orchestrator.Config, logger *slog.Logger) (pipelineRunner, error) {
		captured = &config
		if fake == nil {
			return orchestrator.NewPipeline(ctx, config, logger)
		}
		return fake, nil
	}
	originalStats := storeStats
	if fake != nil {
		storeStats = func(ctx context.Context, config orchestrator.Config) (map[string]interface{}, error) {
			captured = &config
			return fake.stats, fake.err
		}
	}
	t.Cleanup(func() {
		newPipeline = original
		storeStats = originalStats
	})

	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), captured, err
}

func sampleInfo() *character.CharacterInfo {
	return &character.CharacterInfo{
		Name:       "Alice",
		StoryTitle: "Alice's Adventures in Wonderland",
		Summary:    "A curious girl.",
		Relations: map[string]character.RelationDetails{
			"White Rabbit": {RelationType: "guide", Summary: "She follows him."},
		},
		CharacterType: "protagonist",
	}
}

func TestGetCharacterInfo_PrintsJSON(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "test-key")
	fake := &fakePipeline{info: sampleInfo()}

	out, _, err := executeCommand(t, fake, "get-character-info", "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got character.CharacterInfo
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.Name != "Alice" || got.Relations["White Rabbit"].RelationType != "guide" {
		t.Errorf("unexpected output %+v", got)
	}
	if !strings.Contains(out, "\n    \"storyTitle\"") {
		t.Errorf("expected four-space indentation:\n%s", out)
	}
	if fake.queryName != "Alice" || fake.queryOpts.TopK != 3 {
		t.Errorf("unexpected query %q %+v", fake.queryName, fake.queryOpts)
	}
	if !fake.closed {
		t.Error("pipeline was not closed")
	}
}

func TestGetCharacterInfo_LegacyAliasAndFlags(t *testing.T) {
	fake := &fakePipeline{info: sampleInfo()}
	output := filepath.Join(t.TempDir(), "alice.json")

	out, config, err := executeCommand(t, fake,
		"get-character-info-cli", "Alice", "--topk", "5", "--story", "wonderland.txt", "--output", output, "--store", "Milvus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.queryOpts.TopK != 5 || len(fake.queryOpts.Sources) != 1 || fake.queryOpts.Sources[0] != "wonderland.txt" {
		t.Errorf("flags not applied: %+v", fake.queryOpts)
	}
	if config.Store.Backend != rag.StoreMilvus {
		t.Errorf("expected milvus backend, got %s", config.Store.Backend)
	}
	if !strings.Contains(out, "Exported Alice to") {
		t.Errorf("unexpected output %q", out)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := character.ParseCharacterInfo(string(data)); err != nil {
		t.Errorf("exported file invalid: %v", err)
	}
}

func TestCommands_PrintErrorAndExitZero(t *testing.T) {
	fake := &fakePipeline{err: rag.ErrNoMatches}

	out, _, err := executeCommand(t, fake, "get-character-info", "Nobody")
	if err != nil {
		t.Errorf("expected nil error without --strict, got %v", err)
	}
	if !strings.HasPrefix(out, "Error: ") || !strings.Contains(out, rag.ErrNoMatches.Error()) {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCommands_StrictReturnsError(t *testing.T) {
	fake := &fakePipeline{err: orchestrator.ErrNoDocuments}

	out, _, err := executeCommand(t, fake, "compute-embeddings", "./empty", "--strict")
	if !errors.Is(err, orchestrator.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
	if !strings.HasPrefix(out, "Error: ") {
		t.Errorf("expected error line on stdout, got %q", out)
	}
}

func TestComputeEmbeddings_Success(t *testing.T) {
	fake := &fakePipeline{report: &orchestrator.IngestReport{Documents: 2, Chunks: 5, Indexed: 5, Sources: []string{"a.txt", "b.txt"}}}

	out, _, err := executeCommand(t, fake, "compute-embeddings-cli", "./stories", "--reset")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !fake.ingestOpts.Reset {
		t.Error("expected --reset to be forwarded")
	}
	if !strings.Contains(out, "Embedded 5 chunks from 2 stories") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(out, "Embeddings computed and stored successfully.") {
		t.Errorf("missing completion line in %q", out)
	}
}

func TestComputeEmbeddings_MissingAPIKey(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	t.Setenv("STORY_EMBEDDINGS_DIR", t.TempDir())

	out, _, err := executeCommand(t, nil, "compute-embeddings", "./stories")
	if err != nil {
		t.Fatalf("expected exit 0, got %v", err)
	}
	if !strings.Contains(out, "Error: MISTRAL_API_KEY environment variable not set") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestGetCharacterInfo_InvalidTopK(t *testing.T) {
	out, _, err := executeCommand(t, &fakePipeline{}, "get-character-info", "Alice", "--topk", "0", "--strict")
	if !errors.Is(err, character.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(out, "--topk must be positive") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestStats_PrintsSortedKeys(t *testing.T) {
	fake := &fakePipeline{stats: map[string]interface{}{"row_count": 12, "backend": "sqlite"}}

	out, _, err := executeCommand(t, fake, "stats")
	if err != nil {
		t.Fatal(err)
	}

	backend := strings.Index(out, "backend:")
	rows := strings.Index(out, "row_count:")
	if backend < 0 || rows < 0 || backend > rows {
		t.Errorf("expected sorted keys in output:\n%s", out)
	}
	if !strings.Contains(out, "12") {
		t.Errorf("missing row count in %q", out)
	}
}

func TestStats_WithoutAPIKey(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	t.Setenv("STORY_EMBEDDINGS_DIR", t.TempDir())

	out, _, err := executeCommand(t, nil, "stats", "--strict")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "Error:") {
		t.Errorf("stats should not need an API key:\n%s", out)
	}
	if !strings.Contains(out, "row_count:") || !strings.Contains(out, "sqlite") {
		t.Errorf("unexpected output %q", out)
	}
}

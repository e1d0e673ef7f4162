package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Yates-Labs/storyrag/internal/character"
	"github.com/Yates-Labs/storyrag/internal/rag"
)

const aliceStory = "Alice was a curious girl who followed the White Rabbit down a deep hole into Wonderland."

const hookReply = `Here is the profile:
{"name": "Captain Hook", "storyTitle": "Peter Pan", "summary": "A pirate captain who hates Peter.",
 "relations": {"Peter Pan": {"relationType": "enemy", "summary": "Cut off his hand."}}, "characterType": "antagonist"}`

type testPipeline struct {
	*Pipeline
	embedder *rag.MockEmbedder
	llm      *character.MockLLM
	logs     *bytes.Buffer
}

func newTestPipeline(t *testing.T, reply string) *testPipeline {
	t.Helper()

	config := DefaultConfig()
	config.Store.SQLite.Dir = filepath.Join(t.TempDir(), "story_embeddings")

	embedder := rag.NewMockEmbedder(64)
	store, err := rag.OpenStore(context.Background(), config.Store, embedder.GetDimension())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	llm := character.NewMockLLM(reply)

	p, err := NewPipelineWith(config, logger, embedder, store, llm)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	return &testPipeline{Pipeline: p, embedder: embedder, llm: llm, logs: &logs}
}

func writeStory(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func storyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeStory(t, dir, "wonderland.txt", aliceStory)
	writeStory(t, dir, "peter_pan.txt", strings.Repeat("Captain Hook sailed the Jolly Roger. ", 54)) // 1998 characters
	if err := os.WriteFile(filepath.Join(dir, "broken.txt"), []byte{0xff, 0xfe, 0xfd}, 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func rowCount(t *testing.T, p *testPipeline) int64 {
	t.Helper()
	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	return stats["row_count"].(int64)
}

func TestComputeEmbeddings_IndexesStories(t *testing.T) {
	p := newTestPipeline(t, hookReply)

	report, err := p.ComputeEmbeddings(context.Background(), storyDir(t), IngestOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Documents != 2 {
		t.Errorf("expected 2 documents, got %d", report.Documents)
	}
	// 1 chunk for the short story, 3 for the long one
	if report.Chunks != 4 || report.Indexed != 4 {
		t.Errorf("expected 4 chunks indexed, got %d/%d", report.Indexed, report.Chunks)
	}
	if got := rowCount(t, p); got != 4 {
		t.Errorf("expected 4 rows, got %d", got)
	}
	if !strings.Contains(p.logs.String(), "skipping file due to encoding issues") {
		t.Error("expected a skip notice for broken.txt")
	}
}

func TestComputeEmbeddings_ReingestReplacesStories(t *testing.T) {
	p := newTestPipeline(t, hookReply)
	ctx := context.Background()
	dir := storyDir(t)

	for i := 0; i < 2; i++ {
		if _, err := p.ComputeEmbeddings(ctx, dir, IngestOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if got := rowCount(t, p); got != 4 {
		t.Errorf("expected re-ingest to keep 4 rows, got %d", got)
	}
}

func TestComputeEmbeddings_Reset(t *testing.T) {
	p := newTestPipeline(t, hookReply)
	ctx := context.Background()

	if _, err := p.ComputeEmbeddings(ctx, storyDir(t), IngestOptions{}); err != nil {
		t.Fatal(err)
	}

	other := t.TempDir()
	writeStory(t, other, "fable.txt", "The tortoise beat the hare.")
	if _, err := p.ComputeEmbeddings(ctx, other, IngestOptions{Reset: true}); err != nil {
		t.Fatal(err)
	}

	if got := rowCount(t, p); got != 1 {
		t.Errorf("expected only the new story after reset, got %d rows", got)
	}
}

func TestComputeEmbeddings_NoDocuments(t *testing.T) {
	p := newTestPipeline(t, hookReply)
	ctx := context.Background()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "only_bad.txt"), []byte{0xc3, 0x28}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := p.ComputeEmbeddings(ctx, dir, IngestOptions{})
	if !errors.Is(err, ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}

	if _, err := p.ComputeEmbeddings(ctx, filepath.Join(dir, "missing"), IngestOptions{}); err == nil {
		t.Error("expected error for missing directory")
	}
	if !strings.Contains(p.logs.String(), "failed to compute embeddings") {
		t.Error("expected failure to be logged")
	}
}

func TestComputeEmbeddings_EmbedderFailure(t *testing.T) {
	p := newTestPipeline(t, hookReply)
	p.embedder.Error = rag.ErrEmbeddingFailed

	_, err := p.ComputeEmbeddings(context.Background(), storyDir(t), IngestOptions{})
	if !errors.Is(err, rag.ErrEmbeddingFailed) {
		t.Errorf("expected ErrEmbeddingFailed, got %v", err)
	}
}

func TestGetCharacterInfo_NoMatchesSkipsLLM(t *testing.T) {
	p := newTestPipeline(t, hookReply)

	_, err := p.GetCharacterInfo(context.Background(), "Alice", QueryOptions{})
	if !errors.Is(err, rag.ErrNoMatches) {
		t.Errorf("expected ErrNoMatches, got %v", err)
	}
	if p.llm.Calls != 0 {
		t.Errorf("expected no chat calls, got %d", p.llm.Calls)
	}
	if !strings.Contains(p.logs.String(), "level=ERROR") {
		t.Error("expected error to be logged")
	}
}

func TestComputeEmbeddings_FailedReingestKeepsIndex(t *testing.T) {
	p := newTestPipeline(t, hookReply)
	ctx := context.Background()
	dir := storyDir(t)

	if _, err := p.ComputeEmbeddings(ctx, dir, IngestOptions{}); err != nil {
		t.Fatal(err)
	}

	// fail on the second batch of the re-ingest
	p.config.BatchSize = 2
	p.embedder.Error = rag.ErrEmbeddingFailed
	p.embedder.ErrorAfter = p.embedder.Calls + 1

	if _, err := p.ComputeEmbeddings(ctx, dir, IngestOptions{}); !errors.Is(err, rag.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
	if got := rowCount(t, p); got != 4 {
		t.Errorf("expected the previous 4 rows to survive, got %d", got)
	}

	p.embedder.Error = nil
	info, err := p.GetCharacterInfo(ctx, "Captain Hook", QueryOptions{})
	if err != nil {
		t.Fatalf("expected the previous index to answer queries: %v", err)
	}
	if info.Name != "Captain Hook" {
		t.Errorf("unexpected record %+v", info)
	}
}

func TestGetCharacterInfo_Success(t *testing.T) {
	p := newTestPipeline(t, hookReply)
	ctx := context.Background()

	if _, err := p.ComputeEmbeddings(ctx, storyDir(t), IngestOptions{}); err != nil {
		t.Fatal(err)
	}

	info, err := p.GetCharacterInfo(ctx, "Captain Hook", QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.Name != "Captain Hook" || info.Relations["Peter Pan"].RelationType != "enemy" {
		t.Errorf("unexpected record %+v", info)
	}
	if p.llm.Calls != 1 {
		t.Errorf("expected one chat call, got %d", p.llm.Calls)
	}
	if !strings.Contains(p.llm.LastPrompt, "Jolly Roger") {
		t.Error("expected retrieved context in prompt")
	}

	// last embedded text is the retrieval query
	last := p.embedder.Texts[len(p.embedder.Texts)-1]
	if last != "Detailed information about character Captain Hook" {
		t.Errorf("unexpected query %q", last)
	}
}

func TestGetCharacterInfo_TopKAndSources(t *testing.T) {
	p := newTestPipeline(t, hookReply)
	ctx := context.Background()

	if _, err := p.ComputeEmbeddings(ctx, storyDir(t), IngestOptions{}); err != nil {
		t.Fatal(err)
	}

	if _, err := p.GetCharacterInfo(ctx, "Captain Hook", QueryOptions{TopK: 1, Sources: []string{"wonderland.txt"}}); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(p.llm.LastPrompt, aliceStory) {
		t.Error("expected the wonderland chunk in the prompt")
	}
	if strings.Contains(p.llm.LastPrompt, "Jolly Roger") {
		t.Error("source filter leaked peter_pan.txt into the prompt")
	}
}

func TestGetCharacterInfo_UnparseableReply(t *testing.T) {
	p := newTestPipeline(t, "I'm sorry, I cannot help with that.")
	ctx := context.Background()

	if _, err := p.ComputeEmbeddings(ctx, storyDir(t), IngestOptions{}); err != nil {
		t.Fatal(err)
	}

	_, err := p.GetCharacterInfo(ctx, "Alice", QueryOptions{})
	if !errors.Is(err, character.ErrUnparseableResponse) {
		t.Errorf("expected ErrUnparseableResponse, got %v", err)
	}
}

func TestGetCharacterInfo_EmptyName(t *testing.T) {
	p := newTestPipeline(t, hookReply)

	_, err := p.GetCharacterInfo(context.Background(), " ", QueryOptions{})
	if !errors.Is(err, character.ErrMissingCharacterName) {
		t.Errorf("expected ErrMissingCharacterName, got %v", err)
	}
}

func TestStats_IncludesEmbedder(t *testing.T) {
	p := newTestPipeline(t, hookReply)

	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats["embedding_model"] != "mock-embed" || stats["dimension"] != 64 {
		t.Errorf("unexpected stats %v", stats)
	}
	if stats["backend"] != rag.StoreSQLite {
		t.Errorf("expected sqlite backend, got %v", stats["backend"])
	}
}

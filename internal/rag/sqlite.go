package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const (
	DefaultEmbeddingsDir = "./story_embeddings"
	sqliteFileName       = "chunks.db"
)

var chunksSchema = []string{
	`CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    start_offset INTEGER NOT NULL,
    content TEXT NOT NULL,
    model TEXT,
    embedding BLOB NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source)`,
}

// SQLiteConfig holds configuration for the local on-disk store
type SQLiteConfig struct {
	Dir       string // Directory holding the database file (default: ./story_embeddings)
	Dimension int    // Expected vector dimension (0 = not enforced)
}

// DefaultSQLiteConfig returns the default local store location
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Dir:       DefaultEmbeddingsDir,
		Dimension: DefaultEmbeddingDimension,
	}
}

// SQLiteStore implements VectorStore on a local SQLite file. Similarity is
// computed by a brute-force cosine scan, which is adequate for a handful of
// stories.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	config SQLiteConfig
}

// NewSQLiteStore opens (creating if needed) the database under config.Dir
func NewSQLiteStore(ctx context.Context, config SQLiteConfig) (*SQLiteStore, error) {
	if config.Dir == "" {
		config.Dir = DefaultEmbeddingsDir
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrConnectionFailed, config.Dir, err)
	}

	path := filepath.Join(config.Dir, sqliteFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range chunksSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		config: config,
	}, nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string {
	return s.path
}

// Insert adds chunk records in a single transaction
func (s *SQLiteStore) Insert(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertTx(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return nil
}

// ReplaceSources deletes the chunks of sources and inserts records in one
// transaction. On any error the stored chunks are left untouched.
func (s *SQLiteStore) ReplaceSources(ctx context.Context, sources []string, records []ChunkRecord) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(sources) > 0 {
		args := make([]interface{}, len(sources))
		for i, src := range sources {
			args[i] = src
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source IN (`+placeholders(len(sources))+`)`, args...); err != nil {
			return fmt.Errorf("failed to delete records: %w", err)
		}
	}

	if err := s.insertTx(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return nil
}

func (s *SQLiteStore) insertTx(ctx context.Context, tx *sql.Tx, records []ChunkRecord) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks(id, source, chunk_index, start_offset, content, model, embedding) VALUES(?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record id must be set", ErrInsertFailed)
		}
		if s.config.Dimension > 0 && len(r.Embedding) != s.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, s.config.Dimension, len(r.Embedding))
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Source, r.Index, r.Start, r.Text, r.Model, encodeEmbedding(r.Embedding)); err != nil {
			return fmt.Errorf("%w: %v", ErrInsertFailed, err)
		}
	}
	return nil
}

// Flush is a no-op: every Insert commits its own transaction
func (s *SQLiteStore) Flush(ctx context.Context) error {
	return nil
}

// Search scans stored chunks and returns the topK most similar by cosine similarity
func (s *SQLiteStore) Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error) {
	if s.config.Dimension > 0 && len(queryVector) != s.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, s.config.Dimension, len(queryVector))
	}
	if topK <= 0 {
		return []ContextChunk{}, nil
	}

	query := `SELECT id, source, chunk_index, start_offset, content, embedding FROM chunks`
	var args []interface{}
	if opts != nil && len(opts.Sources) > 0 {
		query += ` WHERE source IN (` + placeholders(len(opts.Sources)) + `)`
		for _, src := range opts.Sources {
			args = append(args, src)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer rows.Close()

	var chunks []ContextChunk
	for rows.Next() {
		var (
			c    ContextChunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Index, &c.Start, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %s: %v", ErrSearchFailed, c.ID, err)
		}
		score := cosineSimilarity(queryVector, vec)
		if math.IsNaN(score) {
			continue
		}
		c.Score = float32(score)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	if chunks == nil {
		chunks = []ContextChunk{}
	}
	return chunks, nil
}

// DeleteSources removes all chunks of the given story files
func (s *SQLiteStore) DeleteSources(ctx context.Context, sources []string) error {
	if len(sources) == 0 {
		return nil
	}

	args := make([]interface{}, len(sources))
	for i, src := range sources {
		args[i] = src
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source IN (`+placeholders(len(sources))+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// Reset removes every stored chunk
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	return nil
}

// GetStats returns the chunk and story counts
func (s *SQLiteStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	var rows, sources int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT source) FROM chunks`).Scan(&rows, &sources)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return map[string]interface{}{
		"backend":   StoreSQLite,
		"path":      s.path,
		"row_count": rows,
		"sources":   sources,
	}, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// encodeEmbedding stores float32 values as a little-endian BLOB without a
// length prefix; the length is derived from the BLOB size on decode.
func encodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

var _ VectorStore = (*SQLiteStore)(nil)

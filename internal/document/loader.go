package document

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultExtensions lists the file extensions treated as story text.
var DefaultExtensions = []string{".txt"}

// Loader reads story files from a directory.
type Loader struct {
	// Extensions restricts which files are read (case-insensitive).
	// Empty means DefaultExtensions.
	Extensions []string

	logger *slog.Logger
}

// NewLoader creates a Loader for the default story extensions.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		Extensions: DefaultExtensions,
		logger:     logger,
	}
}

// LoadStories is a convenience wrapper around NewLoader(logger).Load(dir).
func LoadStories(dir string, logger *slog.Logger) ([]StoryDocument, error) {
	return NewLoader(logger).Load(dir)
}

// Load reads every matching file in dir, ordered by file name.
// Files that are not valid UTF-8 are skipped with a warning.
func (l *Loader) Load(dir string) ([]StoryDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list story directory %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []StoryDocument
	for _, entry := range entries {
		if entry.IsDir() || !l.matches(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		if !utf8.Valid(data) {
			l.logger.Warn("skipping file due to encoding issues", "file", entry.Name())
			continue
		}

		docs = append(docs, StoryDocument{
			Source:  entry.Name(),
			Content: string(data),
		})
	}

	return docs, nil
}

func (l *Loader) matches(name string) bool {
	exts := l.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

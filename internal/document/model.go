// Package document loads story files from disk and splits them into
// overlapping text chunks ready for embedding.
package document

// StoryDocument is the raw text of a single story file.
type StoryDocument struct {
	// Source is the file name the content was read from
	Source string `json:"source"`

	// Content is the full UTF-8 text of the file
	Content string `json:"content"`
}

// TextChunk is a bounded window of a StoryDocument.
type TextChunk struct {
	Source string `json:"source"`
	Index  int    `json:"index"` // position of the chunk within its document
	Start  int    `json:"start"` // rune offset of the chunk within the document
	Text   string `json:"text"`
}

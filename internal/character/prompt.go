package character

import (
	"errors"
	"strings"

	"github.com/Yates-Labs/storyrag/internal/rag"
)

var ErrMissingCharacterName = errors.New("character name required")

// BuildQuery returns the retrieval query used to find passages about name.
func BuildQuery(name string) string {
	return "Detailed information about character " + name
}

// AssemblePrompt fills the extraction template with the retrieved chunk
// texts, joined by newlines in retrieval order.
func AssemblePrompt(name string, contextChunks []rag.ContextChunk) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrMissingCharacterName
	}

	texts := make([]string, len(contextChunks))
	for i, c := range contextChunks {
		texts[i] = c.Text
	}

	var b strings.Builder

	b.WriteString("You are an expert literary analyst extracting character information.\n\n")

	b.WriteString("Story Excerpts:\n")
	b.WriteString(strings.Join(texts, "\n"))
	b.WriteString("\n\n")

	b.WriteString("Task: Provide a comprehensive JSON description for the character ")
	b.WriteString(name)
	b.WriteString(".\n\n")

	b.WriteString("JSON Format Requirements:\n")
	b.WriteString("- name: Full name of the character\n")
	b.WriteString("- storyTitle: Title of the story/work\n")
	b.WriteString("- summary: Concise 2-3 sentence character description\n")
	b.WriteString("- relations: Dictionary of key relationships with details\n")
	b.WriteString("  * Keys are other character names\n")
	b.WriteString("  * Values are objects with:\n")
	b.WriteString("    - relationType: Describes the nature of the relationship\n")
	b.WriteString("    - summary: Brief description of the relationship\n")
	b.WriteString("- characterType: Archetypal or narrative role (e.g., protagonist, antagonist, mentor)\n\n")

	b.WriteString("Important: Ensure the JSON is valid and matches the specified structure.\n")
	b.WriteString("Provide a professional, detailed, and accurate response.\n")

	return b.String(), nil
}

package character

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidCharacterInfo = errors.New("invalid character info")

// RelationDetails describes how a character relates to another character.
type RelationDetails struct {
	RelationType string `json:"relationType"`
	Summary      string `json:"summary"`
}

// CharacterInfo is the structured record extracted for one character.
// Unknown JSON fields are ignored on decode; known keys must match exactly.
type CharacterInfo struct {
	Name          string                     `json:"name"`
	StoryTitle    string                     `json:"storyTitle"`
	Summary       string                     `json:"summary"`
	Relations     map[string]RelationDetails `json:"relations"`
	CharacterType string                     `json:"characterType"`
}

// Validate checks required fields and replaces a nil Relations map with an
// empty one so the record always encodes relations as an object.
func (c *CharacterInfo) Validate() error {
	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.StoryTitle == "" {
		missing = append(missing, "storyTitle")
	}
	if c.Summary == "" {
		missing = append(missing, "summary")
	}
	if c.CharacterType == "" {
		missing = append(missing, "characterType")
	}

	names := make([]string, 0, len(c.Relations))
	for name := range c.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rel := c.Relations[name]
		if rel.RelationType == "" {
			missing = append(missing, fmt.Sprintf("relations.%s.relationType", name))
		}
		if rel.Summary == "" {
			missing = append(missing, fmt.Sprintf("relations.%s.summary", name))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields %v", ErrInvalidCharacterInfo, missing)
	}

	if c.Relations == nil {
		c.Relations = map[string]RelationDetails{}
	}
	return nil
}

package character

import (
	"encoding/json"
	"fmt"
	"os"
)

// MarshalIndent encodes info as JSON indented with four spaces.
func MarshalIndent(info *CharacterInfo) ([]byte, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidCharacterInfo)
	}
	return json.MarshalIndent(info, "", "    ")
}

// ExportToJSON writes info to filename as indented JSON.
func ExportToJSON(info *CharacterInfo, filename string) error {
	data, err := MarshalIndent(info)
	if err != nil {
		return fmt.Errorf("failed to marshal character info: %w", err)
	}

	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", filename, err)
	}

	return nil
}

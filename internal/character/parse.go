package character

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var ErrUnparseableResponse = errors.New("no valid JSON found in the response")

// jsonBlock matches the greedy span from the first '{' to the last '}'.
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// JSON keys are matched exactly; encoding/json alone would accept any case.
var (
	characterKeys = []string{"name", "storyTitle", "summary", "relations", "characterType"}
	relationKeys  = []string{"relationType", "summary"}
)

// ParseCharacterInfo converts a model reply into a validated CharacterInfo.
//
// A map is validated directly. A string is decoded as JSON when the whole
// text is JSON; otherwise the first-to-last brace span is decoded. Text that
// is JSON but fails validation is not retried with the brace scan.
func ParseCharacterInfo(content any) (*CharacterInfo, error) {
	switch v := content.(type) {
	case *CharacterInfo:
		if v == nil {
			return nil, fmt.Errorf("%w: nil record", ErrInvalidCharacterInfo)
		}
		info := *v
		if err := info.Validate(); err != nil {
			return nil, err
		}
		return &info, nil
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCharacterInfo, err)
		}
		return decodeCharacterInfo(data)
	case string:
		return parseText(v)
	case []byte:
		return parseText(string(v))
	default:
		return parseText(fmt.Sprint(v))
	}
}

func parseText(text string) (*CharacterInfo, error) {
	if json.Valid([]byte(text)) {
		return decodeCharacterInfo([]byte(text))
	}

	block := jsonBlock.FindString(text)
	if block == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnparseableResponse, text)
	}
	if !json.Valid([]byte(block)) {
		return nil, fmt.Errorf("%w: could not extract valid JSON from %s", ErrUnparseableResponse, block)
	}
	return decodeCharacterInfo([]byte(block))
}

func decodeCharacterInfo(data []byte) (*CharacterInfo, error) {
	var info CharacterInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCharacterInfo, err)
	}
	if err := checkKeyCase(data); err != nil {
		return nil, err
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &info, nil
}

// checkKeyCase rejects keys that only match a field name case-insensitively
func checkKeyCase(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCharacterInfo, err)
	}
	if err := matchKeys(top, characterKeys); err != nil {
		return err
	}

	raw, ok := top["relations"]
	if !ok {
		return nil
	}
	var relations map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &relations); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCharacterInfo, err)
	}
	names := make([]string, 0, len(relations))
	for name := range relations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := matchKeys(relations[name], relationKeys); err != nil {
			return fmt.Errorf("%w (relation %s)", err, name)
		}
	}
	return nil
}

func matchKeys(obj map[string]json.RawMessage, fields []string) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, field := range fields {
			if k != field && strings.EqualFold(k, field) {
				return fmt.Errorf("%w: key %q must be spelled %q", ErrInvalidCharacterInfo, k, field)
			}
		}
	}
	return nil
}

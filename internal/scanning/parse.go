package scanning

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

const snippetLength = 120

// CleanResponse removes code fence markup, the literal "json" fence tag and
// control characters (codes 0-31) from a model reply.
func CleanResponse(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.Map(func(r rune) rune {
		if r < 32 {
			return -1
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimPrefix(text, "json"))
}

// ParseResponse cleans a model reply and decodes it into an untyped tree:
// a map[string]any for an object or a []any for an array. When the cleaned
// text has prose around the JSON, the outermost object or array is used.
func ParseResponse(text string) (any, error) {
	cleaned := CleanResponse(text)
	if cleaned == "" {
		return nil, invalidOutput(cleaned, errors.New("empty response"))
	}

	tree, err := decode(cleaned)
	if err == nil {
		return tree, nil
	}

	if inner, ok := outermostJSON(cleaned); ok {
		if tree, innerErr := decode(inner); innerErr == nil {
			return tree, nil
		}
	}
	return nil, invalidOutput(cleaned, err)
}

func decode(text string) (any, error) {
	var tree any
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		return nil, err
	}
	switch tree.(type) {
	case map[string]any, []any:
		return tree, nil
	default:
		return nil, errors.New("response is not a JSON object or array")
	}
}

// outermostJSON finds the span from the first opening brace or bracket to
// the last matching closing one.
func outermostJSON(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", false
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func invalidOutput(cleaned string, err error) *InvalidOutputError {
	return &InvalidOutputError{Snippet: Truncate(cleaned, snippetLength), Err: err}
}

// Truncate cuts s to at most limit bytes without splitting a rune
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

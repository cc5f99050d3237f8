package extraction

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("no JSON object in reply")

// ExtractJSON returns the first balanced JSON object in text, skipping any
// prose or markdown fences around it.
func ExtractJSON(text string) (string, error) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if candidate, ok := balancedObject(text[start:]); ok && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSON
}

func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// DecodeRawResult parses a reply body into a RawResult. Numbers stay float64.
func DecodeRawResult(text string) (*RawResult, error) {
	body, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var raw RawResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

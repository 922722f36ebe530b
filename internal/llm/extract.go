package llm

import (
	"errors"
	"strings"
)

var (
	ErrNoJSONObject   = errors.New("no JSON object found in model output")
	ErrUnbalancedJSON = errors.New("unbalanced JSON object in model output")
)

// ExtractJSONObject returns the first balanced {...} in raw model output.
// Markdown code fences are stripped first and braces inside string
// literals are ignored.
func ExtractJSONObject(raw string) (string, error) {
	text := StripCodeFences(raw)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", ErrUnbalancedJSON
}

// StripCodeFences removes ``` and ```json fence lines.
func StripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

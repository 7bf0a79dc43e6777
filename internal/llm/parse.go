package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SanitizeJSON extracts the JSON payload from a raw model response.
// Models wrap JSON in markdown fences, prepend chatter, and leak raw
// control characters into string values; all three are repaired here.
func SanitizeJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Strip markdown fences, with or without a language tag.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Trim to the outermost JSON value.
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return s[start:]
	}
	s = s[start : end+1]

	return stripControlChars(s)
}

// stripControlChars replaces raw control characters with spaces. A raw
// newline inside a string value is invalid JSON; a space is harmless
// both inside strings and between tokens.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DecodeJSON sanitizes a model response and unmarshals it into v.
func DecodeJSON(raw string, v any) error {
	cleaned := SanitizeJSON(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("failed to parse model response: %w", err)
	}
	return nil
}

// Package jsonextract recovers JSON objects from free-text model output.
// Models wrap answers in prose or markdown fences; callers here want the
// first object or nothing, with their own typed default standing on failure.
package jsonextract

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoObject = errors.New("no JSON object found")

// FirstObject returns the first balanced brace-delimited substring of s.
// Braces inside JSON strings are ignored.
func FirstObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoObject
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoObject
}

// Unmarshal extracts the first balanced object from raw and decodes it into
// out. Markdown code fences are stripped first. On any failure out is left
// for the caller's default to stand.
func Unmarshal(raw string, out any) error {
	obj, err := FirstObject(StripCodeFences(raw))
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(obj), out)
}

// StripCodeFences removes a surrounding ```...``` block, including an
// optional language tag on the opening fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

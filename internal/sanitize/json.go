package sanitize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONObject is returned when a response holds no JSON object at all.
var ErrNoJSONObject = errors.New("no json object in response")

// DecodeJSON cleans raw and unmarshals it into v. When the cleaned text is not
// valid JSON on its own, the first balanced {...} object is tried instead,
// with Python-style True/False/None literals rewritten.
func DecodeJSON(raw string, v any) error {
	s := Clean(raw)
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	obj, ok := firstObject(s)
	if !ok {
		return ErrNoJSONObject
	}
	if err := json.Unmarshal([]byte(obj), v); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(relaxLiterals(obj)), v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// firstObject returns the first balanced top-level object in s, skipping
// braces inside string literals.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var pyLiterals = map[string]string{"True": "true", "False": "false", "None": "null"}

func relaxLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
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
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		replaced := false
		for py, js := range pyLiterals {
			if strings.HasPrefix(s[i:], py) && !isIdent(s, i-1) && !isIdent(s, i+len(py)) {
				b.WriteString(js)
				i += len(py) - 1
				replaced = true
				break
			}
		}
		if !replaced {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isIdent(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

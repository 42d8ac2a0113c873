// Package sanitize strips formatting artifacts that language models wrap
// around SQL and JSON payloads.
package sanitize

import (
	"strings"
	"unicode"
)

const fence = "```"

// labelLines are echoed prompt labels; a line starting with one is dropped.
var labelLines = []string{"question:", "sqlresult:", "answer:"}

// inlinePrefixes are stripped from the start of a line, the rest is kept.
// Longer prefixes first so "SQL Query:" wins over "SQL:".
var inlinePrefixes = []string{"sqlquery:", "sql query:", "sql:"}

// fenceTags are language tags recognised right after an opening fence.
var fenceTags = map[string]bool{
	"sql": true, "json": true, "postgresql": true, "postgres": true,
	"psql": true, "pgsql": true, "plpgsql": true, "mysql": true,
	"sqlite": true, "bigquery": true, "googlesql": true, "text": true,
}

// Clean returns the payload of an LLM response: the body of the first fenced
// block if there is one, with echoed label lines and inline label prefixes
// removed and empty lines dropped. Text with neither a fence nor a label is
// returned trimmed and otherwise untouched. Clean(Clean(x)) == Clean(x).
func Clean(raw string) string {
	s := raw
	fenced := false
	if i := strings.Index(s, fence); i >= 0 {
		fenced = true
		body := s[i+len(fence):]
		if end := strings.Index(body, fence); end >= 0 {
			body = body[:end]
		}
		s = stripFenceTag(body)
	}

	if !fenced && !hasLabels(s) {
		return strings.TrimSpace(s)
	}

	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line, ok := cleanLine(line)
		if !ok {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// cleanLine strips inline prefixes until none is left. It reports false when
// the line should be dropped. Whitespace is unicode.IsSpace throughout, the
// same set strings.TrimSpace uses in hasLabels and Clean.
func cleanLine(line string) (string, bool) {
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	for {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			return "", false
		}
		if hasPrefixFold(trimmed, labelLines) != "" {
			return "", false
		}
		p := hasPrefixFold(trimmed, inlinePrefixes)
		if p == "" {
			return line, true
		}
		line = strings.TrimLeftFunc(trimmed[len(p):], unicode.IsSpace)
	}
}

func hasLabels(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if hasPrefixFold(trimmed, labelLines) != "" || hasPrefixFold(trimmed, inlinePrefixes) != "" {
			return true
		}
	}
	return false
}

// hasPrefixFold returns the candidate s starts with (case-insensitive), or "".
func hasPrefixFold(s string, candidates []string) string {
	for _, c := range candidates {
		if len(s) >= len(c) && strings.EqualFold(s[:len(c)], c) {
			return s[:len(c)]
		}
	}
	return ""
}

// stripFenceTag removes a language tag directly after an opening fence,
// whether it sits on its own line ("```sql\n") or shares the line with the
// payload ("```sql SELECT 1```").
func stripFenceTag(body string) string {
	end := strings.IndexAny(body, " \t\r\n")
	word := body
	if end >= 0 {
		word = body[:end]
	}
	if fenceTags[strings.ToLower(word)] {
		return body[len(word):]
	}
	return body
}

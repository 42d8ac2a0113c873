package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeSQL marks generated SQL the guard refused to execute.
var ErrUnsafeSQL = errors.New("unsafe sql")

type sqlRule struct {
	re     *regexp.Regexp
	reason string
}

// writableCTE matches a data-modifying statement inside a WITH query.
var writableCTE = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|MERGE|TRUNCATE)\b`)

var sqlRules = []sqlRule{
	{regexp.MustCompile(`(?i);\s*(DROP|DELETE|INSERT|UPDATE|ALTER|CREATE|TRUNCATE|GRANT|REVOKE|COPY)\s+`), "stacked write statement"},
	{regexp.MustCompile(`(?i);\s*EXEC(UTE)?\b`), "stacked execute"},
	{regexp.MustCompile(`(?i)\bINTO\s+(OUTFILE|DUMPFILE)\b`), "file write"},
	{regexp.MustCompile(`(?i)\bLOAD(\s+DATA\b|_FILE\s*\()`), "file read"},
	{regexp.MustCompile(`(?i)\bpg_(read_file|read_binary_file|ls_dir|sleep|terminate_backend|cancel_backend)\s*\(`), "server function"},
	{regexp.MustCompile(`(?i)\b(BENCHMARK|SLEEP)\s*\(`), "timing function"},
	{regexp.MustCompile(`(?i)\bWAITFOR\s+DELAY\b`), "timing function"},
	{regexp.MustCompile(`'.*--`), "comment after string literal"},
	{regexp.MustCompile(`;\s*--`), "comment after terminator"},
	{regexp.MustCompile(`/\*.*?\*/`), "block comment"},
	{regexp.MustCompile(`(?i)\b(OR|AND)\s+1\s*=\s*1\b`), "tautology"},
	{regexp.MustCompile(`(?i)\b(OR|AND)\s+'1'\s*=\s*'1'`), "tautology"},
}

// SQLValidator accepts read-only single statements only. The Postgres
// executor additionally runs every statement in a read-only transaction.
type SQLValidator struct{}

func NewSQLValidator() *SQLValidator {
	return &SQLValidator{}
}

// Validate returns an ErrUnsafeSQL-wrapped error describing the first rule
// sql breaks, or nil. One trailing semicolon is allowed.
func (v *SQLValidator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("%w: SQL cannot be empty", ErrUnsafeSQL)
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("%w: only SELECT queries are allowed", ErrUnsafeSQL)
	}

	if strings.HasPrefix(upper, "WITH") {
		if m := writableCTE.FindString(trimmed); m != "" {
			return fmt.Errorf("%w: %s inside WITH", ErrUnsafeSQL, strings.ToUpper(m))
		}
	}

	for _, rule := range sqlRules {
		if rule.re.MatchString(trimmed) {
			return fmt.Errorf("%w: %s", ErrUnsafeSQL, rule.reason)
		}
	}

	body := strings.TrimSuffix(trimmed, ";")
	if hasStatementBreak(body) {
		return fmt.Errorf("%w: multiple statements are not allowed", ErrUnsafeSQL)
	}
	return nil
}

// hasStatementBreak reports a semicolon outside quoted text.
func hasStatementBreak(sql string) bool {
	var quote rune
	for _, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			return true
		}
	}
	return false
}

package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidQuestion marks a question rejected before the pipeline runs.
var ErrInvalidQuestion = errors.New("invalid question")

var injectionPatterns = []*regexp.Regexp{
	// prompt injection
	regexp.MustCompile(`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)(new|change)\s+context\s*:`),
	regexp.MustCompile(`(?i)instead\s+of\s+the\s+above`),
	regexp.MustCompile(`(?i)\byou\s+are\s+now\b`),
	regexp.MustCompile(`(?i)(reveal|print|show)\s+(your|the)\s+system\s+prompt`),
	regexp.MustCompile(`이전\s*(지시|명령).*(무시|잊어)`),

	// asking the model to write to the database
	regexp.MustCompile(`(?i)\b(drop|truncate|alter)\s+(table|database|schema)\b`),
	regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b`),
	regexp.MustCompile(`(?i)\bupdate\s+\w+\s+set\b`),

	// shell and file access
	regexp.MustCompile(`(?i)\b(rm\s+-|sudo\s+|curl\s+|wget\s+)`),
	regexp.MustCompile(`\.\./|/etc/(passwd|shadow)|id_rsa|\.ssh/`),
	regexp.MustCompile(`(?i)\b(eval|exec|system|__import__|subprocess)\s*\(`),
	regexp.MustCompile(`(?i)\bos\.system\b|\bpopen\b`),
}

// PromptValidator screens user questions before they reach the LLM.
type PromptValidator struct {
	maxLength   int
	piiKeywords []string
}

// NewPromptValidator builds a validator. A nil or empty piiKeywords disables
// the sensitive-keyword check.
func NewPromptValidator(maxLength int, piiKeywords []string) *PromptValidator {
	lower := make([]string, len(piiKeywords))
	for i, k := range piiKeywords {
		lower[i] = strings.ToLower(k)
	}
	return &PromptValidator{maxLength: maxLength, piiKeywords: lower}
}

// Validate returns an ErrInvalidQuestion-wrapped error or nil.
func (v *PromptValidator) Validate(question string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrInvalidQuestion)
	}
	if n := utf8.RuneCountInString(question); v.maxLength > 0 && n > v.maxLength {
		return fmt.Errorf("%w: question too long: %d chars (max %d)", ErrInvalidQuestion, n, v.maxLength)
	}

	for _, p := range injectionPatterns {
		if p.MatchString(question) {
			return fmt.Errorf("%w: disallowed instruction detected", ErrInvalidQuestion)
		}
	}

	if kw, ok := v.DetectPII(question); ok {
		return fmt.Errorf("%w: question asks for sensitive data (%s)", ErrInvalidQuestion, kw)
	}
	return nil
}

// DetectPII returns the first sensitive keyword contained in text.
func (v *PromptValidator) DetectPII(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range v.piiKeywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

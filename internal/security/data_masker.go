package security

import (
	"fmt"
	"regexp"
	"strings"
)

type maskRule struct {
	column *regexp.Regexp
	mask   func(string) string
}

// Order matters: the first matching rule masks the value.
var maskRules = []maskRule{
	{regexp.MustCompile(`(?i)e-?mail`), maskEmail},
	{regexp.MustCompile(`(?i)phone|mobile`), maskPhone},
	{regexp.MustCompile(`(?i)ssn|social_security`), func(string) string { return "***-**-****" }},
	{regexp.MustCompile(`(?i)credit_card|card_number`), maskCreditCard},
	{regexp.MustCompile(`(?i)password|secret|token|api_key|access_key|private_key`), fullMask},
}

// DataMasker hides sensitive column values in query results.
type DataMasker struct {
	extra []string
}

// NewDataMasker masks the built-in sensitive columns plus any column whose
// name contains one of sensitiveColumns.
func NewDataMasker(sensitiveColumns []string) *DataMasker {
	extra := make([]string, 0, len(sensitiveColumns))
	for _, c := range sensitiveColumns {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			extra = append(extra, c)
		}
	}
	return &DataMasker{extra: extra}
}

// MaskRows returns masked copies; the input rows are not modified.
func (m *DataMasker) MaskRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = m.MaskRow(row)
	}
	return out
}

func (m *DataMasker) MaskRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for col, val := range row {
		if val == nil {
			out[col] = nil
			continue
		}
		if mask := m.maskerFor(col); mask != nil {
			out[col] = mask(fmt.Sprint(val))
			continue
		}
		out[col] = val
	}
	return out
}

// IsSensitive reports whether values of col would be masked.
func (m *DataMasker) IsSensitive(col string) bool {
	return m.maskerFor(col) != nil
}

func (m *DataMasker) maskerFor(col string) func(string) string {
	for _, r := range maskRules {
		if r.column.MatchString(col) {
			return r.mask
		}
	}
	lower := strings.ToLower(col)
	for _, s := range m.extra {
		if strings.Contains(lower, s) {
			return fullMask
		}
	}
	return nil
}

func fullMask(string) string { return "***" }

// maskEmail: "mary.smith@sakilacustomer.org" -> "ma***@***.org"
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}
	visible := min(2, len(local))
	ext := domain
	if i := strings.LastIndexByte(domain, '.'); i >= 0 {
		ext = domain[i+1:]
	}
	return local[:visible] + "***@***." + ext
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	d := digits(phone)
	if len(d) < 4 {
		return "***-***-****"
	}
	return "***-***-" + d[len(d)-4:]
}

// maskCreditCard keeps the last four digits.
func maskCreditCard(cc string) string {
	d := digits(cc)
	if len(d) < 4 {
		return "****-****-****-****"
	}
	return "****-****-****-" + d[len(d)-4:]
}

func digits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

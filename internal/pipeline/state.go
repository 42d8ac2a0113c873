package pipeline

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cortexai/text2sql/internal/models"
	"github.com/cortexai/text2sql/internal/prompts"
	"github.com/cortexai/text2sql/internal/query"
	"github.com/cortexai/text2sql/internal/vectorsearch"
)

// intent is what the classifier decided about visualization.
type intent struct {
	VisualizationNeeded bool   `json:"visualization_needed"`
	ChartType           string `json:"chart_type"`
}

func (i intent) chart() models.ChartType {
	if !i.VisualizationNeeded {
		return models.ChartNone
	}
	return models.ParseChartType(i.ChartType)
}

// answer is the synthesizer payload. chart_data is kept raw so a malformed
// chart does not cost us the text answer.
type answer struct {
	NaturalLanguageResponse string          `json:"natural_language_response"`
	ChartData               json.RawMessage `json:"chart_data"`
}

// state is owned by one Run and never shared.
type state struct {
	started  time.Time
	question string
	prompts  *prompts.Set

	intent intent
	chart  models.ChartType

	context []vectorsearch.Match
	tables  []prompts.TableContext

	sql    string
	result query.Result

	response  string
	chartData []map[string]any
}

func (s *state) sqlQuestion() string {
	if len(s.context) == 0 {
		return s.question
	}
	return "Context:\n" + joinContent(s.context) + "\n\nQuestion: " + s.question
}

func joinContent(matches []vectorsearch.Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

func decodeChartData(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return []map[string]any{}
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil || rows == nil {
		return []map[string]any{}
	}
	return rows
}

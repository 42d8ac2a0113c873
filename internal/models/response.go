package models

import (
	"encoding/json"

	"github.com/cortexai/text2sql/internal/schemadoc"
	"github.com/cortexai/text2sql/internal/vectorsearch"
)

// ChartType is the visualization the intent classifier asked for.
type ChartType string

const (
	ChartBar     ChartType = "bar"
	ChartLine    ChartType = "line"
	ChartPie     ChartType = "pie"
	ChartScatter ChartType = "scatter"
	ChartTable   ChartType = "table"
	ChartNone    ChartType = "none"
)

// ParseChartType maps free-form model output onto a known chart type.
// Anything unrecognised is ChartNone.
func ParseChartType(s string) ChartType {
	switch ct := ChartType(s); ct {
	case ChartBar, ChartLine, ChartPie, ChartScatter, ChartTable:
		return ct
	}
	return ChartNone
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// WelcomeResponse is returned by GET /
type WelcomeResponse struct {
	Message string `json:"message"`
}

// QueryResponse is returned by POST /query and POST /hybrid-query.
// Result rows of a failed execution are a single {"result": "Error executing query: ..."}.
// Context is set only by hybrid queries: nil omits the field, an empty slice
// is written as [].
type QueryResponse struct {
	SQLQuery                string               `json:"sql_query"`
	TableNames              []string             `json:"table_names"`
	Result                  []map[string]any     `json:"result"`
	NaturalLanguageResponse string               `json:"natural_language_response"`
	ChartType               ChartType            `json:"chart_type"`
	ChartData               []map[string]any     `json:"chart_data"`
	Context                 []vectorsearch.Match `json:"context"`
}

func (r QueryResponse) MarshalJSON() ([]byte, error) {
	type plain QueryResponse
	out := struct {
		plain
		Context *[]vectorsearch.Match `json:"context,omitempty"`
	}{plain: plain(r)}
	if r.Context != nil {
		out.Context = &r.Context
	}
	return json.Marshal(out)
}

// VectorSearchResponse is returned by the /vector-search routes.
type VectorSearchResponse struct {
	Results []vectorsearch.Match `json:"results"`
	Count   int                  `json:"count"`
}

// InitReportResponse is returned by POST /admin/init-table-docs
type InitReportResponse struct {
	Status string           `json:"status"`
	Report schemadoc.Report `json:"report"`
}

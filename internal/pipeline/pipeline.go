// Package pipeline turns one natural-language question into SQL, runs it and
// phrases the result. Stages run strictly in order on a per-request state:
// intent, schema retrieval, SQL generation, sanitizing, execution, answer.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/text2sql/internal/llm"
	"github.com/cortexai/text2sql/internal/models"
	"github.com/cortexai/text2sql/internal/observability"
	"github.com/cortexai/text2sql/internal/prompts"
	"github.com/cortexai/text2sql/internal/query"
	"github.com/cortexai/text2sql/internal/sanitize"
	"github.com/cortexai/text2sql/internal/security"
	"github.com/cortexai/text2sql/internal/vectorsearch"
)

var ErrEmptyQuestion = errors.New("question cannot be empty")

// Searcher ranks documents against a text query.
type Searcher interface {
	Search(ctx context.Context, q vectorsearch.Query) ([]vectorsearch.Match, error)
}

// Request is one question to answer. UseVectorContext prepends the nearest
// content documents to the question given to SQL generation.
type Request struct {
	RequestID        string
	Question         string
	Language         string
	UseVectorContext bool
	TopK             int
}

// Deps are the collaborators of a Pipeline. Content may be nil when content
// embeddings are not configured; hybrid requests then run without context.
type Deps struct {
	LLM      llm.Completer
	Prompts  *prompts.Catalog
	Schema   Searcher
	Content  Searcher
	Executor query.Executor
	Tables   query.TableLister
	Audit    *security.AuditLogger

	SchemaTopK       int
	PromptResultRows int
}

type Pipeline struct {
	llm        llm.Completer
	prompts    *prompts.Catalog
	schema     Searcher
	content    Searcher
	exec       query.Executor
	tables     query.TableLister
	audit      *security.AuditLogger
	schemaTopK int
	resultRows int
}

func New(d Deps) *Pipeline {
	if d.SchemaTopK <= 0 {
		d.SchemaTopK = 3
	}
	if d.PromptResultRows <= 0 {
		d.PromptResultRows = 50
	}
	return &Pipeline{
		llm:        d.LLM,
		prompts:    d.Prompts,
		schema:     d.Schema,
		content:    d.Content,
		exec:       d.Executor,
		tables:     d.Tables,
		audit:      d.Audit,
		schemaTopK: d.SchemaTopK,
		resultRows: d.PromptResultRows,
	}
}

// Run answers req. Malformed model output and SQL failures are part of the
// response; only provider failures and cancellation are returned as errors.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.QueryResponse, error) {
	st := &state{
		started:  time.Now(),
		question: strings.TrimSpace(req.Question),
	}
	if st.question == "" {
		return nil, ErrEmptyQuestion
	}
	st.prompts = p.prompts.Resolve(req.Language, st.question)

	resp, err := p.run(ctx, st, req)
	observability.ObservePipelineRun(err)
	p.audit.LogQuery(security.QueryAudit{
		RequestID:   req.RequestID,
		Question:    st.question,
		Locale:      st.prompts.Locale,
		SQL:         st.sql,
		RowCount:    len(st.result.Rows),
		ExecFailed:  st.result.Failed(),
		ChartType:   string(st.chart),
		Elapsed:     time.Since(st.started),
		PipelineErr: err,
	})
	return resp, err
}

func (p *Pipeline) run(ctx context.Context, st *state, req Request) (*models.QueryResponse, error) {
	if err := p.stage("intent", func() error { return p.classify(ctx, st) }); err != nil {
		return nil, err
	}
	if req.UseVectorContext {
		_ = p.stage("context", func() error { p.retrieveContext(ctx, st, req.TopK); return nil })
	}
	_ = p.stage("schema", func() error { p.retrieveSchema(ctx, st); return nil })
	if err := p.stage("sql", func() error { return p.generateSQL(ctx, st) }); err != nil {
		return nil, err
	}
	_ = p.stage("execute", func() error { st.result = p.exec.Execute(ctx, st.sql); return nil })
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.stage("answer", func() error { return p.synthesize(ctx, st) }); err != nil {
		return nil, err
	}

	if st.chart == models.ChartNone {
		st.chartData = []map[string]any{}
	}

	resp := &models.QueryResponse{
		SQLQuery:                st.sql,
		TableNames:              p.usedTables(ctx, st.sql),
		Result:                  st.result.Records(),
		NaturalLanguageResponse: st.response,
		ChartType:               st.chart,
		ChartData:               st.chartData,
	}
	if req.UseVectorContext {
		resp.Context = st.context
		if resp.Context == nil {
			resp.Context = []vectorsearch.Match{}
		}
	}

	log.Info().
		Str("request_id", req.RequestID).
		Str("locale", st.prompts.Locale).
		Str("chart_type", string(st.chart)).
		Int("rows", len(st.result.Rows)).
		Bool("exec_failed", st.result.Failed()).
		Dur("elapsed", time.Since(st.started)).
		Msg("pipeline completed")
	return resp, nil
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	observability.ObserveStage(name, elapsed)
	log.Debug().Str("stage", name).Dur("elapsed", elapsed).Err(err).Msg("pipeline stage finished")
	return err
}

func (p *Pipeline) classify(ctx context.Context, st *state) error {
	prompt, err := st.prompts.Intent(prompts.IntentData{Question: st.question})
	if err != nil {
		return err
	}
	raw, err := p.llm.Complete(ctx, "", prompt)
	if err != nil {
		return fmt.Errorf("intent classification: %w", err)
	}
	if err := sanitize.DecodeJSON(raw, &st.intent); err != nil {
		log.Warn().Err(err).Str("stage", "intent").Msg("malformed model output, assuming no chart")
		observability.IncrementMalformedOutput("intent")
		st.intent = intent{ChartType: string(models.ChartNone)}
	}
	st.chart = st.intent.chart()
	return nil
}

func (p *Pipeline) retrieveContext(ctx context.Context, st *state, topK int) {
	if p.content == nil {
		return
	}
	matches, err := p.content.Search(ctx, vectorsearch.Query{Text: st.question, K: topK})
	if err != nil {
		log.Warn().Err(err).Msg("content retrieval failed, continuing without context")
		return
	}
	st.context = matches
}

func (p *Pipeline) retrieveSchema(ctx context.Context, st *state) {
	if p.schema == nil {
		return
	}
	matches, err := p.schema.Search(ctx, vectorsearch.Query{Text: st.question, K: p.schemaTopK})
	if err != nil {
		log.Warn().Err(err).Msg("schema retrieval failed, generating SQL without table context")
		return
	}
	for _, m := range matches {
		st.tables = append(st.tables, prompts.TableContext{Name: m.Name, Document: m.Content})
	}
}

func (p *Pipeline) generateSQL(ctx context.Context, st *state) error {
	system, user, err := st.prompts.SQL(prompts.SQLData{
		Question: st.sqlQuestion(),
		Dialect:  p.exec.Dialect(),
		Tables:   st.tables,
	})
	if err != nil {
		return err
	}
	raw, err := p.llm.Complete(ctx, system, user)
	if err != nil {
		return fmt.Errorf("sql generation: %w", err)
	}
	st.sql = sanitize.Clean(raw)
	return nil
}

func (p *Pipeline) synthesize(ctx context.Context, st *state) error {
	intentJSON, _ := json.Marshal(st.intent)
	prompt, err := st.prompts.Answer(prompts.AnswerData{
		Question: st.question,
		SQL:      st.sql,
		Result:   p.promptResult(st.result),
		Intent:   string(intentJSON),
	})
	if err != nil {
		return err
	}
	raw, err := p.llm.Complete(ctx, "", prompt)
	if err != nil {
		return fmt.Errorf("answer synthesis: %w", err)
	}

	var a answer
	if err := sanitize.DecodeJSON(raw, &a); err != nil {
		log.Warn().Err(err).Str("stage", "answer").Msg("malformed model output, returning empty answer")
		observability.IncrementMalformedOutput("answer")
		st.response = ""
		st.chartData = []map[string]any{}
		return nil
	}
	st.response = a.NaturalLanguageResponse
	st.chartData = decodeChartData(a.ChartData)
	return nil
}

// promptResult renders at most resultRows rows for the answer prompt.
func (p *Pipeline) promptResult(r query.Result) string {
	recs := r.Records()
	if len(recs) > p.resultRows {
		recs = recs[:p.resultRows]
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return fmt.Sprint(recs)
	}
	return string(b)
}

func (p *Pipeline) usedTables(ctx context.Context, sql string) []string {
	if p.tables == nil || sql == "" {
		return []string{}
	}
	known, err := p.tables.ListTables(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not list tables, table_names left empty")
		return []string{}
	}
	return query.UsedTables(sql, known)
}

package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/cortexai/text2sql/internal/handler"
	"github.com/cortexai/text2sql/internal/models"
	"github.com/cortexai/text2sql/internal/pipeline"
	"github.com/cortexai/text2sql/internal/schemadoc"
	"github.com/cortexai/text2sql/internal/security"
	"github.com/cortexai/text2sql/internal/vectorsearch"
)

type fakeRunner struct {
	calls int
	got   pipeline.Request
	resp  *models.QueryResponse
	err   error
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*models.QueryResponse, error) {
	f.calls++
	f.got = req
	return f.resp, f.err
}

func post(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var e models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

// ─── /query ──────────────────────────────────────────────────

func TestQuery_EmptyQuestionIs400(t *testing.T) {
	for _, lang := range []string{"", "en", "ko", "fr"} {
		runner := &fakeRunner{}
		h := handler.NewQueryHandler(runner, security.NewPromptValidator(2000, nil), nil)

		rr := post(t, h.Query, "/query", `{"question": "  ", "language": "`+lang+`"}`)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("lang %q: status = %d, want 400", lang, rr.Code)
		}
		if e := decodeError(t, rr); e.Detail != "Question cannot be empty" {
			t.Errorf("detail = %q", e.Detail)
		}
		if runner.calls != 0 {
			t.Error("pipeline must not run for an empty question")
		}
	}
}

func TestQuery_OK(t *testing.T) {
	runner := &fakeRunner{resp: &models.QueryResponse{
		SQLQuery:   "SELECT COUNT(*) FROM film",
		TableNames: []string{"film"},
		Result:     []map[string]any{{"count": 1000}},
		ChartType:  models.ChartNone,
		ChartData:  []map[string]any{},
	}}
	h := handler.NewQueryHandler(runner, nil, nil)

	rr := post(t, h.Query, "/query", `{"question": "How many films?", "language": "ko"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body)
	}
	var got map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"sql_query", "table_names", "result", "natural_language_response", "chart_type", "chart_data"} {
		if _, ok := got[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}
	if _, ok := got["context"]; ok {
		t.Error("plain query should not carry context")
	}
	if runner.got.Language != "ko" || runner.got.UseVectorContext {
		t.Errorf("runner got %+v", runner.got)
	}
}

func TestQuery_PipelineFailureIs500(t *testing.T) {
	runner := &fakeRunner{err: errors.New("sql generation: connection refused")}
	h := handler.NewQueryHandler(runner, nil, nil)

	rr := post(t, h.Query, "/query", `{"question": "How many films?"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); !strings.HasPrefix(e.Detail, "Failed to process query: ") {
		t.Errorf("detail = %q", e.Detail)
	}
}

func TestQuery_InvalidBody(t *testing.T) {
	h := handler.NewQueryHandler(&fakeRunner{}, nil, nil)
	rr := post(t, h.Query, "/query", `{"question":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestQuery_ValidatorRejects(t *testing.T) {
	runner := &fakeRunner{}
	h := handler.NewQueryHandler(runner, security.NewPromptValidator(2000, []string{"password"}), security.NewAuditLogger(true))

	rr := post(t, h.Query, "/query", `{"question": "Show every staff password"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
	if runner.calls != 0 {
		t.Error("rejected question reached the pipeline")
	}
}

// ─── /hybrid-query ───────────────────────────────────────────

func TestHybridQuery_Defaults(t *testing.T) {
	runner := &fakeRunner{resp: &models.QueryResponse{Context: []vectorsearch.Match{}}}
	h := handler.NewQueryHandler(runner, nil, nil)

	rr := post(t, h.HybridQuery, "/hybrid-query", `{"question": "films about dinosaurs"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if got := string(body["context"]); got != "[]" {
		t.Errorf("context = %q, want []", got)
	}
	if !runner.got.UseVectorContext || runner.got.TopK != 0 {
		t.Errorf("runner got %+v", runner.got)
	}

	rr = post(t, h.HybridQuery, "/hybrid-query", `{"question": "films", "use_vector_context": false, "top_k": 7}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if runner.got.UseVectorContext || runner.got.TopK != 7 {
		t.Errorf("runner got %+v", runner.got)
	}
}

func TestHybridQuery_BadInput(t *testing.T) {
	h := handler.NewQueryHandler(&fakeRunner{}, nil, nil)
	for _, body := range []string{`{"question": ""}`, `{"question": "x", "top_k": -1}`} {
		if rr := post(t, h.HybridQuery, "/hybrid-query", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rr.Code)
		}
	}
}

// ─── /vector-search ──────────────────────────────────────────

type fakeSearcher struct {
	got     vectorsearch.Query
	matches []vectorsearch.Match
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, q vectorsearch.Query) ([]vectorsearch.Match, error) {
	f.got = q
	return f.matches, f.err
}

func TestVectorSearch(t *testing.T) {
	s := &fakeSearcher{matches: []vectorsearch.Match{{SourceTable: "film", SourceID: 1, Content: "Title: ACADEMY DINOSAUR"}}}
	h := handler.NewVectorHandler(s)

	rr := post(t, h.Search, "/vector-search", `{"query": "dinosaur", "top_k": 3, "source_filter": "film"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp models.VectorSearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if s.got.K != 3 || s.got.Source != "film" {
		t.Errorf("search got %+v", s.got)
	}
}

func TestVectorSearch_SourceFilterAliases(t *testing.T) {
	tests := []struct {
		filter, want string
	}{
		{"films", "film"},
		{"categories", "category"},
		{"film", "film"},
		{"store_notes", "store_notes"},
		{"", ""},
	}
	for _, tt := range tests {
		s := &fakeSearcher{}
		h := handler.NewVectorHandler(s)
		rr := post(t, h.Search, "/vector-search", `{"query": "sharks", "source_filter": "`+tt.filter+`"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("%q: status = %d", tt.filter, rr.Code)
		}
		if s.got.Source != tt.want {
			t.Errorf("source_filter %q searched %q, want %q", tt.filter, s.got.Source, tt.want)
		}
	}
}

func TestVectorSearch_Validation(t *testing.T) {
	h := handler.NewVectorHandler(&fakeSearcher{})
	for _, body := range []string{`{"query": ""}`, `{"query": "x", "top_k": -5}`} {
		if rr := post(t, h.Search, "/vector-search", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rr.Code)
		}
	}
}

func TestVectorSearch_BySource(t *testing.T) {
	s := &fakeSearcher{}
	h := handler.NewVectorHandler(s)
	r := chi.NewRouter()
	r.Post("/vector-search/{source}", h.SearchSource)

	tests := []struct {
		path       string
		wantStatus int
		wantSource string
	}{
		{"/vector-search/films", http.StatusOK, "film"},
		{"/vector-search/actors", http.StatusOK, "actor"},
		{"/vector-search/customers", http.StatusOK, "customer"},
		{"/vector-search/categories", http.StatusOK, "category"},
		{"/vector-search/payments", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		s.got = vectorsearch.Query{}
		req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"query": "x", "source_filter": "ignored"}`))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.path, rr.Code, tt.wantStatus)
		}
		if s.got.Source != tt.wantSource {
			t.Errorf("%s: source = %q, want %q", tt.path, s.got.Source, tt.wantSource)
		}
	}
}

func TestVectorSearch_BackendError(t *testing.T) {
	h := handler.NewVectorHandler(&fakeSearcher{err: errors.New("pgvector search: connection refused")})
	if rr := post(t, h.Search, "/vector-search", `{"query": "x"}`); rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rr.Code)
	}
}

// ─── Root / health / admin ───────────────────────────────────

func TestRoot(t *testing.T) {
	rr := httptest.NewRecorder()
	handler.Root(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rr.Body.String(), "Welcome to the Text-to-SQL API!") {
		t.Errorf("body = %s", rr.Body)
	}
}

func TestHealth(t *testing.T) {
	ok := handler.PingFunc(func(context.Context) error { return nil })
	down := handler.PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	h := handler.NewHealthHandler(map[string]handler.HealthChecker{"postgres": ok})
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rr.Code)
	}

	h = handler.NewHealthHandler(map[string]handler.HealthChecker{"postgres": ok, "elasticsearch": down})
	rr = httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d", rr.Code)
	}
	var resp models.HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Checks["postgres"] != "ok" || !strings.HasPrefix(resp.Checks["elasticsearch"], "unavailable") {
		t.Errorf("checks = %v", resp.Checks)
	}
}

type fakeInitializer struct {
	rep schemadoc.Report
	err error
}

func (f fakeInitializer) Run(context.Context) (schemadoc.Report, error) { return f.rep, f.err }

func TestInitTableDocs(t *testing.T) {
	h := handler.NewAdminHandler(fakeInitializer{rep: schemadoc.Report{Total: 14, Inserted: 13, Failed: []string{"staff"}}})
	rr := post(t, h.InitTableDocs, "/admin/init-table-docs", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp models.InitReportResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "partial" || resp.Report.Inserted != 13 {
		t.Errorf("resp = %+v", resp)
	}

	h = handler.NewAdminHandler(fakeInitializer{err: errors.New("count table_docs: boom")})
	if rr := post(t, h.InitTableDocs, "/admin/init-table-docs", ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rr.Code)
	}
}

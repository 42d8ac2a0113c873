package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "text2sql_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"method", "route", "status"},
	)
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)
	pipelineStageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "text2sql_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"stage"},
	)
	malformedOutputTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_llm_malformed_output_total",
			Help: "Total number of LLM payloads that failed to parse and were replaced by defaults.",
		},
		[]string{"stage"},
	)
	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_llm_calls_total",
			Help: "Total number of LLM API calls by provider, operation and outcome.",
		},
		[]string{"provider", "operation", "outcome"},
	)
	sqlExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_sql_executions_total",
			Help: "Total number of generated SQL executions by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)
	vectorSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_vector_searches_total",
			Help: "Total number of similarity searches by backend and source.",
		},
		[]string{"backend", "source"},
	)
	embeddingsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_embeddings_ingested_total",
			Help: "Total number of content documents embedded and stored, by source.",
		},
		[]string{"source"},
	)
	schemaDocsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_schema_docs_total",
			Help: "Schema documents processed by the initialization pass, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		pipelineRunsTotal,
		pipelineStageSeconds,
		malformedOutputTotal,
		llmCallsTotal,
		sqlExecutionsTotal,
		vectorSearchesTotal,
		embeddingsIngestedTotal,
		schemaDocsTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveHTTPRequest(method, route, status string, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}

func ObservePipelineRun(err error) {
	pipelineRunsTotal.WithLabelValues(outcome(err)).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	pipelineStageSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func IncrementMalformedOutput(stage string) {
	malformedOutputTotal.WithLabelValues(stage).Inc()
}

func ObserveLLMCall(provider, operation string, err error) {
	llmCallsTotal.WithLabelValues(provider, operation, outcome(err)).Inc()
}

func ObserveSQLExecution(backend string, failed bool) {
	o := "ok"
	if failed {
		o = "error"
	}
	sqlExecutionsTotal.WithLabelValues(backend, o).Inc()
}

func ObserveVectorSearch(backend, source string) {
	if source == "" {
		source = "all"
	}
	vectorSearchesTotal.WithLabelValues(backend, source).Inc()
}

func AddEmbeddingsIngested(source string, n int) {
	if n > 0 {
		embeddingsIngestedTotal.WithLabelValues(source).Add(float64(n))
	}
}

func ObserveSchemaDocs(inserted, failed int) {
	if inserted > 0 {
		schemaDocsTotal.WithLabelValues("inserted").Add(float64(inserted))
	}
	if failed > 0 {
		schemaDocsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

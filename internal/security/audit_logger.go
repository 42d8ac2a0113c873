package security

import (
	"time"

	"github.com/rs/zerolog/log"
)

// QueryAudit is one pipeline run as recorded in the audit log. Question and
// SQL are logged as hashes only.
type QueryAudit struct {
	RequestID   string
	Question    string
	Locale      string
	SQL         string
	RowCount    int
	ExecFailed  bool
	ChartType   string
	Elapsed     time.Duration
	PipelineErr error
}

// AuditLogger writes security-relevant events with hashed identifiers.
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

func (a *AuditLogger) LogQuery(e QueryAudit) {
	if a == nil || !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "query_audit").
		Str("request_id", e.RequestID).
		Str("question_hash", shortHash(e.Question)).
		Str("sql_hash", shortHash(e.SQL)).
		Str("locale", e.Locale).
		Int("row_count", e.RowCount).
		Bool("exec_failed", e.ExecFailed).
		Str("chart_type", e.ChartType).
		Int64("elapsed_ms", e.Elapsed.Milliseconds()).
		Bool("success", e.PipelineErr == nil)
	if e.PipelineErr != nil {
		evt = evt.Str("error", e.PipelineErr.Error())
	}
	evt.Msg("audit")
}

// LogRejected records a question refused by validation.
func (a *AuditLogger) LogRejected(requestID, question string, reason error) {
	if a == nil || !a.enabled {
		return
	}
	log.Warn().
		Str("event", "question_rejected").
		Str("request_id", requestID).
		Str("question_hash", shortHash(question)).
		Str("reason", reason.Error()).
		Msg("audit")
}

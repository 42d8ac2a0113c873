package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	bytesPerGB        = 1_000_000_000.0
	bigQueryCostPerTB = 5.0 // USD, on-demand pricing
)

// ErrCostLimit is returned when a dry run estimates more bytes than allowed.
var ErrCostLimit = errors.New("query cost limit exceeded")

// CostTracker enforces a per-query byte budget on the BigQuery backend.
type CostTracker struct {
	maxBytes int64
}

func NewCostTracker(maxBytes int64) *CostTracker {
	return &CostTracker{maxBytes: maxBytes}
}

// Check returns ErrCostLimit when bytes exceeds the budget. A non-positive
// budget disables the check.
func (ct *CostTracker) Check(bytes int64) error {
	if ct.maxBytes <= 0 || bytes <= ct.maxBytes {
		return nil
	}
	return fmt.Errorf("%w: processed %.2fGB, limit %.2fGB",
		ErrCostLimit, float64(bytes)/bytesPerGB, float64(ct.maxBytes)/bytesPerGB)
}

// LogQueryCost logs the billed estimate of a finished query.
func (ct *CostTracker) LogQueryCost(sql string, bytes int64, elapsed time.Duration) {
	gb := float64(bytes) / bytesPerGB
	log.Info().
		Str("event", "query_cost").
		Str("sql_hash", shortHash(sql)).
		Float64("cost_gb", gb).
		Float64("cost_usd", gb/1000.0*bigQueryCostPerTB).
		Int64("duration_ms", elapsed.Milliseconds()).
		Msg("query cost")
}

func shortHash(s string) string {
	if s == "" {
		return ""
	}
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}

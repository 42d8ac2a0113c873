package query

import (
	"context"

	"github.com/cortexai/text2sql/internal/observability"
	"github.com/cortexai/text2sql/internal/security"
)

// Guarded validates SQL before it reaches the wrapped executor and masks
// sensitive columns on the way out. A nil validator or masker skips that step.
type Guarded struct {
	next      Executor
	validator *security.SQLValidator
	masker    *security.DataMasker
}

func NewGuarded(next Executor, validator *security.SQLValidator, masker *security.DataMasker) *Guarded {
	return &Guarded{next: next, validator: validator, masker: masker}
}

func (g *Guarded) Dialect() string { return g.next.Dialect() }
func (g *Guarded) Backend() string { return g.next.Backend() }

func (g *Guarded) Execute(ctx context.Context, sql string) Result {
	if g.validator != nil {
		if err := g.validator.Validate(sql); err != nil {
			observability.ObserveSQLExecution(g.Backend(), true)
			return Failure(err)
		}
	}
	res := g.next.Execute(ctx, sql)
	if !res.Failed() && g.masker != nil {
		res.Rows = g.masker.MaskRows(res.Rows)
	}
	return res
}

package schemadoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/text2sql/internal/llm"
	"github.com/cortexai/text2sql/internal/observability"
	"github.com/cortexai/text2sql/internal/query"
)

// Table names a table and what it holds.
type Table struct {
	Name        string
	Description string
}

// Report is the outcome of one initialization pass.
type Report struct {
	Skipped  bool     `json:"skipped"`
	Existing int      `json:"existing"`
	Total    int      `json:"total"`
	Inserted int      `json:"inserted"`
	Failed   []string `json:"failed"`
	Elapsed  string   `json:"elapsed"`
}

// FormatDoc renders the text that is embedded for one table.
func FormatDoc(description string, cols []query.ColumnInfo) (string, error) {
	var ddl bytes.Buffer
	ddl.WriteString("{")
	for i, c := range cols {
		if i > 0 {
			ddl.WriteString(", ")
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return "", err
		}
		body, err := json.Marshal(c)
		if err != nil {
			return "", err
		}
		ddl.Write(name)
		ddl.WriteString(": ")
		ddl.Write(body)
	}
	ddl.WriteString("}")
	return fmt.Sprintf("<Description>%s</Description>\n<DDL>\n%s\n</DDL>", description, ddl.String()), nil
}

// Initializer fills table_docs the first time it runs against an empty
// store. Later runs are no-ops.
type Initializer struct {
	store    *Store
	columns  query.ColumnDescriber
	embedder llm.Embedder
	tables   []Table
}

func NewInitializer(store *Store, columns query.ColumnDescriber, embedder llm.Embedder, tables []Table) *Initializer {
	return &Initializer{store: store, columns: columns, embedder: embedder, tables: tables}
}

// Run creates the table if needed and, when it is empty, inserts one
// document per configured table. A table that cannot be described or
// embedded is logged and listed in Report.Failed; the rest still run.
func (in *Initializer) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	rep := Report{Total: len(in.tables), Failed: []string{}}

	if err := in.store.EnsureSchema(ctx); err != nil {
		return rep, err
	}
	n, err := in.store.Count(ctx)
	if err != nil {
		return rep, err
	}
	if n > 0 {
		rep.Skipped = true
		rep.Existing = n
		rep.Elapsed = time.Since(start).String()
		log.Info().Int("existing", n).Msg("table_docs already populated, skipping initialization")
		return rep, nil
	}

	for _, t := range in.tables {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		inserted, err := in.one(ctx, t)
		if err != nil {
			log.Warn().Err(err).Str("table", t.Name).Msg("schema document failed")
			rep.Failed = append(rep.Failed, t.Name)
			continue
		}
		if inserted {
			rep.Inserted++
		}
	}

	observability.ObserveSchemaDocs(rep.Inserted, len(rep.Failed))
	rep.Elapsed = time.Since(start).String()
	log.Info().
		Int("inserted", rep.Inserted).
		Int("failed", len(rep.Failed)).
		Int("total", rep.Total).
		Str("elapsed", rep.Elapsed).
		Msg("table_docs initialized")
	return rep, nil
}

func (in *Initializer) one(ctx context.Context, t Table) (bool, error) {
	cols, err := in.columns.Columns(ctx, t.Name)
	if err != nil {
		return false, err
	}
	doc, err := FormatDoc(t.Description, cols)
	if err != nil {
		return false, err
	}
	vec, err := llm.EmbedOne(ctx, in.embedder, doc)
	if err != nil {
		return false, fmt.Errorf("embed %s: %w", t.Name, err)
	}
	return in.store.Insert(ctx, t.Name, doc, vec)
}

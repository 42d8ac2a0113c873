package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cortexai/text2sql/internal/observability"
	"github.com/rs/zerolog/log"
)

// PostgresExecutor runs generated SQL on the shared database handle.
type PostgresExecutor struct {
	db      *sql.DB
	maxRows int
}

// NewPostgresExecutor returns an executor that keeps at most maxRows rows of
// any result; maxRows <= 0 keeps everything.
func NewPostgresExecutor(db *sql.DB, maxRows int) *PostgresExecutor {
	return &PostgresExecutor{db: db, maxRows: maxRows}
}

func (e *PostgresExecutor) Dialect() string { return "PostgreSQL" }
func (e *PostgresExecutor) Backend() string { return "postgres" }

func (e *PostgresExecutor) Execute(ctx context.Context, query string) Result {
	if strings.TrimSpace(query) == "" {
		return Failure(ErrEmptySQL)
	}

	start := time.Now()
	res := e.execute(ctx, query)
	observability.ObserveSQLExecution(e.Backend(), res.Failed())

	evt := log.Debug()
	if res.Failed() {
		evt = log.Warn().Err(res.Err)
	}
	evt.Str("backend", e.Backend()).
		Int("rows", len(res.Rows)).
		Bool("truncated", res.Truncated).
		Dur("duration", time.Since(start)).
		Msg("sql executed")
	return res
}

// execute runs query in a read-only transaction that is always rolled back,
// so a statement the guard missed still cannot write.
func (e *PostgresExecutor) execute(ctx context.Context, query string) Result {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Failure(fmt.Errorf("begin read-only transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return Failure(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Failure(fmt.Errorf("read columns: %w", err))
	}

	out := make([]map[string]any, 0)
	truncated := false
	for rows.Next() {
		if e.maxRows > 0 && len(out) >= e.maxRows {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Failure(fmt.Errorf("scan row: %w", err))
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return Failure(err)
	}

	return Result{Columns: columns, Rows: out, Truncated: truncated}
}

// normalizeValue makes driver values JSON friendly.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}

// PostgresTables lists base tables of the public schema.
type PostgresTables struct {
	db      *sql.DB
	exclude map[string]bool
}

// NewPostgresTables ignores the named bookkeeping tables.
func NewPostgresTables(db *sql.DB, exclude ...string) *PostgresTables {
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[name] = true
	}
	return &PostgresTables{db: db, exclude: ex}
}

const listTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
ORDER BY table_name`

func (t *PostgresTables) ListTables(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if !t.exclude[name] {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

const listColumnsSQL = `
SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = 'public' AND table_name = $1
ORDER BY ordinal_position`

func (t *PostgresTables) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := t.db.QueryContext(ctx, listColumnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		var def sql.NullString
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &def); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if def.Valid {
			c.ColumnDefault = &def.String
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s has no columns or does not exist", table)
	}
	return cols, nil
}

// Package query executes generated SQL and reports the outcome as an explicit
// Result value instead of an error, so a failing query is still an answer.
package query

import (
	"context"
	"errors"
)

// ErrorPrefix starts the text shown to callers when execution fails.
const ErrorPrefix = "Error executing query: "

var ErrEmptySQL = errors.New("empty SQL statement")

// Result is the outcome of one execution. Exactly one of Rows or Err is
// meaningful: check Failed first.
type Result struct {
	Columns   []string
	Rows      []map[string]any
	Truncated bool
	Err       error
}

// Failure wraps err as a failed Result.
func Failure(err error) Result {
	return Result{Err: err}
}

func (r Result) Failed() bool { return r.Err != nil }

// ErrorText is the message surfaced to callers for a failed execution.
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return ErrorPrefix + r.Err.Error()
}

// Records is the value placed in the response's result field. A failure is
// reported as a single {"result": "<error text>"} row.
func (r Result) Records() []map[string]any {
	if r.Failed() {
		return []map[string]any{{"result": r.ErrorText()}}
	}
	if r.Rows == nil {
		return []map[string]any{}
	}
	return r.Rows
}

// Executor runs one SQL statement.
type Executor interface {
	Execute(ctx context.Context, sql string) Result
	// Dialect names the SQL flavour for prompts, e.g. "PostgreSQL".
	Dialect() string
	// Backend is a short label for logs and metrics.
	Backend() string
}

// TableLister enumerates the tables queries may reference.
type TableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

// ColumnInfo is one column of a table, as listed in schema documents.
type ColumnInfo struct {
	Name          string  `json:"-"`
	DataType      string  `json:"data_type"`
	IsNullable    string  `json:"is_nullable"`
	ColumnDefault *string `json:"column_default"`
}

// ColumnDescriber lists the columns of one table in ordinal order.
type ColumnDescriber interface {
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
}

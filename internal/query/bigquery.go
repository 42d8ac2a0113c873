package query

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/cortexai/text2sql/internal/observability"
	"github.com/cortexai/text2sql/internal/security"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQueryExecutor runs generated SQL against one BigQuery dataset. Table
// names in the SQL resolve against that dataset.
type BigQueryExecutor struct {
	client   *bigquery.Client
	dataset  string
	location string
	maxRows  int
	timeout  time.Duration
	cost     *security.CostTracker
}

type BigQueryConfig struct {
	ProjectID       string
	CredentialsFile string
	Location        string
	Dataset         string
	MaxRows         int
	Timeout         time.Duration
}

// NewBigQueryExecutor creates the client. A non-nil cost tracker turns on a
// dry run before each query to enforce the byte budget.
func NewBigQueryExecutor(ctx context.Context, cfg BigQueryConfig, cost *security.CostTracker) (*BigQueryExecutor, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &BigQueryExecutor{
		client:   client,
		dataset:  cfg.Dataset,
		location: cfg.Location,
		maxRows:  cfg.MaxRows,
		timeout:  cfg.Timeout,
		cost:     cost,
	}, nil
}

func (e *BigQueryExecutor) Dialect() string { return "BigQuery Standard SQL" }
func (e *BigQueryExecutor) Backend() string { return "bigquery" }

func (e *BigQueryExecutor) Close() error {
	return e.client.Close()
}

// Ping verifies connectivity with a trivial query.
func (e *BigQueryExecutor) Ping(ctx context.Context) error {
	job, err := e.newQuery("SELECT 1").Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	return status.Err()
}

func (e *BigQueryExecutor) newQuery(sql string) *bigquery.Query {
	q := e.client.Query(sql)
	q.Location = e.location
	if e.dataset != "" {
		q.DefaultProjectID = e.client.Project()
		q.DefaultDatasetID = e.dataset
	}
	return q
}

func (e *BigQueryExecutor) Execute(ctx context.Context, sql string) Result {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, bytes := e.execute(ctx, sql)
	observability.ObserveSQLExecution(e.Backend(), res.Failed())
	if !res.Failed() && e.cost != nil {
		e.cost.LogQueryCost(sql, bytes, time.Since(start))
	}
	return res
}

func (e *BigQueryExecutor) execute(ctx context.Context, sql string) (Result, int64) {
	if e.cost != nil {
		dry := e.newQuery(sql)
		dry.DryRun = true
		job, err := dry.Run(ctx)
		if err != nil {
			return Failure(fmt.Errorf("dry run: %w", err)), 0
		}
		if stats := job.LastStatus().Statistics; stats != nil {
			if err := e.cost.Check(stats.TotalBytesProcessed); err != nil {
				return Failure(err), 0
			}
		}
	}

	job, err := e.newQuery(sql).Run(ctx)
	if err != nil {
		return Failure(fmt.Errorf("query run: %w", err)), 0
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return Failure(fmt.Errorf("job wait: %w", err)), 0
	}
	if err := status.Err(); err != nil {
		return Failure(err), 0
	}

	var bytes int64
	if stats := job.LastStatus().Statistics; stats != nil {
		bytes = stats.TotalBytesProcessed
	}

	it, err := job.Read(ctx)
	if err != nil {
		return Failure(fmt.Errorf("job read: %w", err)), bytes
	}

	var columns []string
	rows := make([]map[string]any, 0)
	truncated := false
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return Failure(fmt.Errorf("read row: %w", err)), bytes
		}
		if columns == nil && it.Schema != nil {
			for _, f := range it.Schema {
				columns = append(columns, f.Name)
			}
		}
		if e.maxRows > 0 && len(rows) >= e.maxRows {
			truncated = true
			break
		}
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		rows = append(rows, m)
	}

	return Result{Columns: columns, Rows: rows, Truncated: truncated}, bytes
}

// ListTables returns the table IDs of the configured dataset.
func (e *BigQueryExecutor) ListTables(ctx context.Context) ([]string, error) {
	if e.dataset == "" {
		return nil, fmt.Errorf("bigquery dataset is not configured")
	}
	var tables []string
	it := e.client.Dataset(e.dataset).Tables(ctx)
	for {
		tbl, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables = append(tables, tbl.TableID)
	}
	return tables, nil
}

// Columns describes a table the way the schema-doc initializer expects.
func (e *BigQueryExecutor) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	meta, err := e.client.Dataset(e.dataset).Table(table).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("get table %q.%q: %w", e.dataset, table, err)
	}
	cols := make([]ColumnInfo, 0, len(meta.Schema))
	for _, f := range meta.Schema {
		nullable := "YES"
		if f.Required {
			nullable = "NO"
		}
		cols = append(cols, ColumnInfo{Name: f.Name, DataType: string(f.Type), IsNullable: nullable})
	}
	log.Debug().Str("table", table).Int("columns", len(cols)).Msg("bigquery schema loaded")
	return cols, nil
}

package warehouse

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresOptions configures OpenPostgres
type PostgresOptions struct {
	DatabaseURL string
	// CloudSQLInstance, as project:region:instance, routes connections
	// through the Cloud SQL connector with IAM database authentication.
	CloudSQLInstance string
}

// Postgres maps a dataset to a schema and appends with COPY
type Postgres struct {
	pool   *pgxpool.Pool
	dialer *cloudsqlconn.Dialer
	logger *zap.Logger
}

// OpenPostgres creates a connection pool and verifies it
func OpenPostgres(ctx context.Context, opts PostgresOptions, logger *zap.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	var dialer *cloudsqlconn.Dialer
	if opts.CloudSQLInstance != "" {
		dialer, err = cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
		if err != nil {
			return nil, fmt.Errorf("failed to create Cloud SQL dialer: %w", err)
		}
		instance := opts.CloudSQLInstance
		poolConfig.ConnConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(ctx, instance)
		}
	}

	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		closeDialer(dialer)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		closeDialer(dialer)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Debug("connected to postgres", zap.Bool("cloudsql", dialer != nil))
	return &Postgres{pool: pool, dialer: dialer, logger: logger}, nil
}

func closeDialer(d *cloudsqlconn.Dialer) {
	if d != nil {
		d.Close()
	}
}

// Append creates the schema, the table and the ledger if needed, then
// copies every row in one transaction.
func (p *Postgres) Append(ctx context.Context, job Job) error {
	schema := pgx.Identifier{job.Table.Dataset}.Sanitize()
	qualified := pgx.Identifier{job.Table.Dataset, job.Table.Table}.Sanitize()
	ledger := pgx.Identifier{job.Table.Dataset, LedgerTable}.Sanitize()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ddl := []string{
		"CREATE SCHEMA IF NOT EXISTS " + schema,
		createTableSQL(qualified, job.Schema, "TEXT"),
		`CREATE TABLE IF NOT EXISTS ` + ledger + ` (
			job_id     TEXT PRIMARY KEY,
			table_name TEXT NOT NULL,
			row_count  INTEGER NOT NULL,
			loaded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range ddl {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare destination: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO "+ledger+" (job_id, table_name, row_count) VALUES ($1, $2, $3)",
		job.ID, job.Table.Table, len(job.Rows),
	)
	if err != nil {
		return fmt.Errorf("failed to record load job: %w", err)
	}

	rows := make([][]any, len(job.Rows))
	for i, row := range job.Rows {
		if len(row) != len(job.Schema) {
			return fmt.Errorf("row %d has %d cells, schema has %d fields", i, len(row), len(job.Schema))
		}
		values := make([]any, len(row))
		for j, cell := range row {
			if cell != nil {
				values[j] = *cell
			}
		}
		rows[i] = values
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{job.Table.Dataset, job.Table.Table},
		job.Schema.Names(),
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	p.logger.Debug("copied rows", zap.Int64("rows", n), zap.String("table", qualified))
	return nil
}

// Describe counts rows and columns of dataset.table
func (p *Postgres) Describe(ctx context.Context, id TableID) (TableInfo, error) {
	var columns int
	err := p.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
	`, id.Dataset, id.Table).Scan(&columns)
	if err != nil {
		return TableInfo{}, fmt.Errorf("failed to read columns: %w", err)
	}
	if columns == 0 {
		return TableInfo{}, fmt.Errorf("%w: %s.%s", ErrTableNotFound, id.Dataset, id.Table)
	}

	var rows int64
	qualified := pgx.Identifier{id.Dataset, id.Table}.Sanitize()
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM "+qualified).Scan(&rows); err != nil {
		return TableInfo{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return TableInfo{Rows: rows, Columns: columns}, nil
}

// Close closes the pool, then the Cloud SQL dialer if one was used
func (p *Postgres) Close() error {
	p.pool.Close()
	if p.dialer != nil {
		return p.dialer.Close()
	}
	return nil
}

package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrTableNotFound is returned by Describe for a table that does not exist
var ErrTableNotFound = errors.New("table not found")

const sqliteLedgerSQL = `
CREATE TABLE IF NOT EXISTS ` + LedgerTable + ` (
	job_id        TEXT PRIMARY KEY,
	table_name    TEXT NOT NULL,
	row_count     INTEGER NOT NULL,
	loaded_at_utc TEXT NOT NULL
)`

// SQLite is a file-backed warehouse for local runs and tests. Each dataset
// and table pair maps to one SQLite table named dataset_table.
type SQLite struct {
	conn    *sql.DB
	writeMu sync.Mutex // one load at a time; SQLite has a single writer
	logger  *zap.Logger
}

// OpenSQLite opens the database at path with WAL mode enabled
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			logger.Warn("failed to set pragma", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if _, err := conn.ExecContext(ctx, sqliteLedgerSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create load ledger: %w", err)
	}

	logger.Debug("connected to sqlite", zap.String("path", path))
	return &SQLite{conn: conn, logger: logger}, nil
}

// Append creates the table if needed and inserts every row and a ledger
// entry in one transaction. A repeated job id fails the whole job.
func (s *SQLite) Append(ctx context.Context, job Job) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	name := job.Table.FlatName()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTableSQL(quoteIdent(name), job.Schema, "TEXT")); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+LedgerTable+" (job_id, table_name, row_count, loaded_at_utc) VALUES (?, ?, ?, ?)",
		job.ID, name, len(job.Rows), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record load job: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(quoteIdent(name), job.Schema))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(job.Schema))
	for i, row := range job.Rows {
		if len(row) != len(job.Schema) {
			return fmt.Errorf("row %d has %d cells, schema has %d fields", i, len(row), len(job.Schema))
		}
		for j, cell := range row {
			if cell == nil {
				args[j] = nil
			} else {
				args[j] = *cell
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Describe counts rows and columns of the dataset_table table
func (s *SQLite) Describe(ctx context.Context, id TableID) (TableInfo, error) {
	name := id.FlatName()

	var columns int
	err := s.conn.QueryRowContext(ctx,
		"SELECT count(*) FROM pragma_table_info(?)", name,
	).Scan(&columns)
	if err != nil {
		return TableInfo{}, fmt.Errorf("failed to read columns of %s: %w", name, err)
	}
	if columns == 0 {
		return TableInfo{}, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	var rows int64
	if err := s.conn.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteIdent(name)).Scan(&rows); err != nil {
		return TableInfo{}, fmt.Errorf("failed to count rows of %s: %w", name, err)
	}
	return TableInfo{Rows: rows, Columns: columns}, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying connection
func (s *SQLite) Conn() *sql.DB {
	return s.conn
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(qualified string, schema Schema, colType string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(qualified)
	b.WriteString(" (")
	for i, f := range schema {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(f.Name))
		b.WriteString(" ")
		b.WriteString(colType)
	}
	b.WriteString(")")
	return b.String()
}

func insertSQL(qualified string, schema Schema) string {
	cols := make([]string, len(schema))
	marks := make([]string, len(schema))
	for i, f := range schema {
		cols[i] = quoteIdent(f.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified, strings.Join(cols, ", "), strings.Join(marks, ", "))
}

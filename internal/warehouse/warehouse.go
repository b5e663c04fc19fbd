// Package warehouse appends tables of text to an analytical store
package warehouse

import (
	"context"
	"fmt"
)

// Warehouse is a destination that accepts append-only load jobs
type Warehouse interface {
	// Append submits job and blocks until it reaches a terminal state
	Append(ctx context.Context, job Job) error
	// Describe reads the current row and column counts of a table
	Describe(ctx context.Context, id TableID) (TableInfo, error)
	Close() error
}

// Job is one append-mode load. Rows follow Schema order; a nil cell is NULL
type Job struct {
	ID     string
	Table  TableID
	Schema Schema
	Rows   [][]*string
}

// TableInfo is the destination metadata read after a load
type TableInfo struct {
	Rows    int64
	Columns int
}

// Summary reports a completed load
type Summary struct {
	JobID    string
	Table    string
	Rows     int64
	Columns  int
	Appended int
}

func (s Summary) String() string {
	return fmt.Sprintf("Loaded %d rows and %d columns to %s", s.Rows, s.Columns, s.Table)
}

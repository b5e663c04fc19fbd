package warehouse

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danee593/carris-encm/internal/table"
	"github.com/danee593/carris-encm/pkg/encm"
)

// Loader appends tables to one destination with a fixed schema
type Loader struct {
	wh      Warehouse
	tableID string
	schema  Schema
	logger  *zap.Logger

	newJobID func() string
}

// NewLoader creates a loader for the destination named by tableID
func NewLoader(wh Warehouse, tableID string, schema Schema, logger *zap.Logger) *Loader {
	return &Loader{
		wh:      wh,
		tableID: tableID,
		schema:  schema,
		logger:  logger,
		newJobID: func() string {
			return encm.JobIDPrefix + uuid.New().String()
		},
	}
}

// Load appends t and returns the destination's row and column counts
// after the append. Every error wraps encm.ErrLoad.
func (l *Loader) Load(ctx context.Context, t *table.Table) (Summary, error) {
	id, err := ParseTableID(l.tableID)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", encm.ErrLoad, err)
	}

	rows := l.project(t)
	job := Job{
		ID:     l.newJobID(),
		Table:  id,
		Schema: l.schema,
		Rows:   rows,
	}

	l.logger.Info("submitting load job",
		zap.String("job_id", job.ID),
		zap.String("table", id.String()),
		zap.Int("rows", len(rows)),
	)

	if err := l.wh.Append(ctx, job); err != nil {
		return Summary{}, fmt.Errorf("%w: job %s: %w", encm.ErrLoad, job.ID, err)
	}

	info, err := l.wh.Describe(ctx, id)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: failed to read table metadata: %w", encm.ErrLoad, err)
	}

	return Summary{
		JobID:    job.ID,
		Table:    l.tableID,
		Rows:     info.Rows,
		Columns:  info.Columns,
		Appended: len(rows),
	}, nil
}

// project reorders t onto the schema. Declared columns missing from t are
// NULL; columns of t outside the schema are dropped.
func (l *Loader) project(t *table.Table) [][]*string {
	for _, c := range t.Columns() {
		if !l.schema.Has(c) {
			l.logger.Warn("dropping column not in schema", zap.String("column", c))
		}
	}

	cols := make([][]string, len(l.schema))
	for j, f := range l.schema {
		if values, ok := t.Column(f.Name); ok {
			cols[j] = values
		} else {
			l.logger.Warn("schema column absent from batch, loading NULL", zap.String("column", f.Name))
		}
	}

	rows := make([][]*string, t.Len())
	for i := range rows {
		row := make([]*string, len(l.schema))
		for j := range l.schema {
			if cols[j] != nil {
				row[j] = &cols[j][i]
			}
		}
		rows[i] = row
	}
	return rows
}

package warehouse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danee593/carris-encm/internal/table"
	"github.com/danee593/carris-encm/pkg/encm"
)

type fakeWarehouse struct {
	jobs        []Job
	appendErr   error
	describeErr error
	info        TableInfo
	closed      bool
}

func (f *fakeWarehouse) Append(_ context.Context, job Job) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.jobs = append(f.jobs, job)
	f.info.Rows += int64(len(job.Rows))
	f.info.Columns = len(job.Schema)
	return nil
}

func (f *fakeWarehouse) Describe(_ context.Context, _ TableID) (TableInfo, error) {
	return f.info, f.describeErr
}

func (f *fakeWarehouse) Close() error {
	f.closed = true
	return nil
}

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New("id", "name", "time")
	require.NoError(t, tbl.AppendRow("1", "Office A", "24/03/05 10:00:00"))
	require.NoError(t, tbl.AppendRow("2", "Office B", "24/03/05 10:00:00"))
	return tbl
}

func TestLoader_Load(t *testing.T) {
	wh := &fakeWarehouse{info: TableInfo{Rows: 10, Columns: 3}}
	l := NewLoader(wh, "proj.carris.encm", StringSchema("id", "name", "time"), zaptest.NewLogger(t))

	summary, err := l.Load(context.Background(), sampleTable(t))
	require.NoError(t, err)

	require.Len(t, wh.jobs, 1)
	job := wh.jobs[0]
	assert.True(t, strings.HasPrefix(job.ID, encm.JobIDPrefix))
	assert.Equal(t, TableID{"proj", "carris", "encm"}, job.Table)
	require.Len(t, job.Rows, 2)
	assert.Equal(t, "Office B", *job.Rows[1][1])

	assert.Equal(t, int64(12), summary.Rows)
	assert.Equal(t, 3, summary.Columns)
	assert.Equal(t, 2, summary.Appended)
	assert.Equal(t, job.ID, summary.JobID)
	assert.Equal(t, "Loaded 12 rows and 3 columns to proj.carris.encm", summary.String())
}

func TestLoader_ProjectsOntoSchema(t *testing.T) {
	wh := &fakeWarehouse{}
	l := NewLoader(wh, "carris.encm", StringSchema("name", "lat", "id"), zaptest.NewLogger(t))

	tbl := table.New("id", "name", "extra")
	require.NoError(t, tbl.AppendRow("1", "Office A", "dropped"))

	_, err := l.Load(context.Background(), tbl)
	require.NoError(t, err)

	row := wh.jobs[0].Rows[0]
	require.Len(t, row, 3)
	assert.Equal(t, "Office A", *row[0])
	assert.Nil(t, row[1], "absent column loads as NULL")
	assert.Equal(t, "1", *row[2])
}

func TestLoader_EmptyTableStillSubmitted(t *testing.T) {
	wh := &fakeWarehouse{}
	l := NewLoader(wh, "carris.encm", StringSchema("id"), zaptest.NewLogger(t))

	summary, err := l.Load(context.Background(), table.New())
	require.NoError(t, err)
	require.Len(t, wh.jobs, 1)
	assert.Empty(t, wh.jobs[0].Rows)
	assert.Zero(t, summary.Appended)
}

func TestLoader_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		tableID string
		wh      *fakeWarehouse
		target  error
	}{
		{"bad table id", "encm", &fakeWarehouse{}, ErrInvalidTableID},
		{"empty table id", "", &fakeWarehouse{}, ErrInvalidTableID},
		{"append fails", "carris.encm", &fakeWarehouse{appendErr: boom}, boom},
		{"describe fails", "carris.encm", &fakeWarehouse{describeErr: boom}, boom},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLoader(tc.wh, tc.tableID, StringSchema("id"), zaptest.NewLogger(t))
			_, err := l.Load(context.Background(), sampleTable(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, encm.ErrLoad)
			assert.ErrorIs(t, err, tc.target)
		})
	}
}

// Package pipeline runs one fetch-and-append invocation
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danee593/carris-encm/internal/config"
	"github.com/danee593/carris-encm/internal/facilities"
	"github.com/danee593/carris-encm/internal/table"
	"github.com/danee593/carris-encm/internal/warehouse"
	"github.com/danee593/carris-encm/pkg/encm"
)

// Fetcher produces the batch to load
type Fetcher interface {
	Fetch(ctx context.Context) (*table.Table, error)
}

// Opener connects to the warehouse for one invocation
type Opener func(ctx context.Context) (warehouse.Warehouse, error)

// Trigger carries the two opaque values a hosting platform passes per call.
// They are logged and otherwise ignored.
type Trigger struct {
	Data    []byte
	Context map[string]string
}

// Pipeline wires a fetcher to a warehouse destination
type Pipeline struct {
	fetcher Fetcher
	open    Opener
	tableID string
	schema  warehouse.Schema
	out     io.Writer
	logger  *zap.Logger
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithSchema replaces the facility schema
func WithSchema(s warehouse.Schema) Option {
	return func(p *Pipeline) { p.schema = s }
}

// WithOutput sets where Invoke prints the summary line. Defaults to stdout
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// New creates a pipeline loading into tableID
func New(fetcher Fetcher, open Opener, tableID string, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher: fetcher,
		open:    open,
		tableID: tableID,
		schema:  facilities.Schema(),
		out:     os.Stdout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromConfig builds the production pipeline: the facilities client and the
// warehouse backend selected by cfg.
func FromConfig(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", encm.ErrInvalidConfig, err)
	}

	client := facilities.NewClient(cfg.FacilitiesURL, cfg.HTTPTimeout(), logger.Named("facilities"),
		facilities.WithLocation(loc),
	)
	open := func(ctx context.Context) (warehouse.Warehouse, error) {
		return warehouse.Open(ctx, cfg, logger.Named("warehouse"))
	}
	return New(client, open, cfg.TableID, logger, opts...), nil
}

// Run fetches a batch, then opens the warehouse and appends it. A failed
// fetch returns before the warehouse is opened; once opened, the warehouse
// is always closed before Run returns.
func (p *Pipeline) Run(ctx context.Context, trigger Trigger) (warehouse.Summary, error) {
	runID := uuid.New().String()
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("invocation started",
		zap.ByteString("trigger_data", trigger.Data),
		zap.Any("trigger_context", trigger.Context),
	)

	batch, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return warehouse.Summary{}, err
	}

	wh, err := p.open(ctx)
	if err != nil {
		return warehouse.Summary{}, fmt.Errorf("%w: failed to open warehouse: %w", encm.ErrLoad, err)
	}
	defer func() {
		if cerr := wh.Close(); cerr != nil {
			logger.Warn("failed to close warehouse", zap.Error(cerr))
		}
	}()

	loader := warehouse.NewLoader(wh, p.tableID, p.schema, logger.Named("loader"))
	summary, err := loader.Load(ctx, batch)
	if err != nil {
		return warehouse.Summary{}, err
	}

	logger.Info("invocation finished",
		zap.String("table", summary.Table),
		zap.Int64("rows", summary.Rows),
		zap.Int("columns", summary.Columns),
		zap.Int("appended", summary.Appended),
		zap.String("job_id", summary.JobID),
	)
	return summary, nil
}

// Invoke runs once, prints the summary line and returns the exit status
func (p *Pipeline) Invoke(ctx context.Context, trigger Trigger) int {
	summary, err := p.Run(ctx, trigger)
	if err != nil {
		p.logger.Error("invocation failed", zap.Error(err))
		return encm.ExitCodeForError(err)
	}
	fmt.Fprintln(p.out, summary.String())
	return encm.ExitSuccess
}

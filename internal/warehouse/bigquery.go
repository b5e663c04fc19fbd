package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// BigQueryOptions configures OpenBigQuery
type BigQueryOptions struct {
	// ProjectID is detected from the environment when empty
	ProjectID string
	Location  string
	// Endpoint points the client at an emulator; authentication is skipped
	Endpoint string
}

// BigQuery appends through load jobs fed with newline-delimited JSON
type BigQuery struct {
	client   *bigquery.Client
	location string
	logger   *zap.Logger
}

// OpenBigQuery creates a client using application default credentials
func OpenBigQuery(ctx context.Context, opts BigQueryOptions, logger *zap.Logger) (*BigQuery, error) {
	project := opts.ProjectID
	if project == "" {
		project = bigquery.DetectProjectID
	}

	var clientOpts []option.ClientOption
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	}

	client, err := bigquery.NewClient(ctx, project, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}
	if opts.Location != "" {
		client.Location = opts.Location
	}

	logger.Debug("bigquery client ready", zap.String("project", client.Project()))
	return &BigQuery{client: client, location: opts.Location, logger: logger}, nil
}

func (b *BigQuery) table(id TableID) *bigquery.Table {
	id = id.WithProject(b.client.Project())
	return b.client.DatasetInProject(id.Project, id.Dataset).Table(id.Table)
}

// Append runs one WRITE_APPEND load job and waits for it
func (b *BigQuery) Append(ctx context.Context, job Job) error {
	var buf bytes.Buffer
	if err := encodeNDJSON(&buf, job.Schema, job.Rows); err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}

	source := bigquery.NewReaderSource(&buf)
	source.SourceFormat = bigquery.JSON
	source.Schema = bigQuerySchema(job.Schema)

	loader := b.table(job.Table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.JobID = job.ID
	loader.Location = b.location

	j, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to submit load job: %w", err)
	}

	status, err := j.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load job failed: %w", err)
	}

	b.logger.Debug("load job done", zap.String("job_id", j.ID()))
	return nil
}

// Describe reads the table metadata
func (b *BigQuery) Describe(ctx context.Context, id TableID) (TableInfo, error) {
	md, err := b.table(id).Metadata(ctx)
	if err != nil {
		return TableInfo{}, err
	}
	return TableInfo{Rows: int64(md.NumRows), Columns: len(md.Schema)}, nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}

func bigQuerySchema(s Schema) bigquery.Schema {
	out := make(bigquery.Schema, len(s))
	for i, f := range s {
		out[i] = &bigquery.FieldSchema{
			Name: f.Name,
			Type: bigquery.FieldType(f.Type),
		}
	}
	return out
}

// encodeNDJSON writes one JSON object per row. NULL cells are omitted so the
// load job stores NULL rather than an empty string.
func encodeNDJSON(w io.Writer, schema Schema, rows [][]*string) error {
	enc := json.NewEncoder(w)
	for i, row := range rows {
		if len(row) != len(schema) {
			return fmt.Errorf("row %d has %d cells, schema has %d fields", i, len(row), len(schema))
		}
		obj := make(map[string]string, len(schema))
		for j, f := range schema {
			if row[j] != nil {
				obj[f.Name] = *row[j]
			}
		}
		if err := enc.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}

// Package facilities fetches the Carris Metropolitana ENCM facility dataset
package facilities

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danee593/carris-encm/internal/table"
	"github.com/danee593/carris-encm/pkg/encm"
)

const userAgent = "carris-encm/1.0"

// Client fetches one snapshot of the facility dataset per call
type Client struct {
	url      string
	client   *http.Client
	location *time.Location
	logger   *zap.Logger

	now func() time.Time
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithLocation sets the time zone of the capture stamp
func WithLocation(loc *time.Location) Option {
	return func(cl *Client) { cl.location = loc }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// NewClient creates a client for url with the given request timeout
func NewClient(url string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		location: time.Local,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads the dataset and returns it as a table of text with a
// "time" column stamped once for every row. Every error wraps encm.ErrFetch.
func (c *Client) Fetch(ctx context.Context) (*table.Table, error) {
	body, err := c.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", encm.ErrFetch, err)
	}
	capturedAt := c.now().In(c.location)

	t, err := table.FromJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", encm.ErrFetch, err)
	}

	if t.HasColumn(encm.CaptureTimeColumn) {
		c.logger.Warn("source already has a time column, overwriting")
	}
	t.Fill(encm.CaptureTimeColumn, capturedAt.Format(encm.CaptureTimeLayout))

	c.logger.Info("fetched facilities",
		zap.Int("rows", t.Len()),
		zap.Int("columns", t.Width()),
		zap.Int("bytes", len(body)),
	)
	return t, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch facilities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("facilities endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

package facilities

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danee593/carris-encm/pkg/encm"
)

var timePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}$`)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_ColumnOriented(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"id": ["1","2"], "name": ["Office A","Office B"]}`)
	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

	tbl, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "time"}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())

	first, _ := tbl.Value(0, "time")
	second, _ := tbl.Value(1, "time")
	assert.Regexp(t, timePattern, first)
	assert.Equal(t, first, second)

	name, _ := tbl.Value(1, "name")
	assert.Equal(t, "Office B", name)
}

func TestFetch_CaptureStamp(t *testing.T) {
	srv := serve(t, http.StatusOK, `[{"id": 1}]`)
	lisbon, err := time.LoadLocation("Europe/Lisbon")
	require.NoError(t, err)

	fixed := time.Date(2024, time.July, 5, 8, 9, 10, 0, time.UTC)
	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t),
		WithLocation(lisbon),
		WithClock(func() time.Time { return fixed }),
	)

	tbl, err := c.Fetch(context.Background())
	require.NoError(t, err)

	stamp, _ := tbl.Value(0, encm.CaptureTimeColumn)
	// Lisbon is UTC+1 in summer
	assert.Equal(t, "24/07/05 09:09:10", stamp)
}

func TestFetch_RecordOrientedCoercesToText(t *testing.T) {
	srv := serve(t, http.StatusOK, `[
		{"id": "E1", "lat": 38.7, "is_open": true, "currently_waiting": 0, "stops": ["010101", "020202"], "email": null},
		{"id": "E2", "lat": -9.1, "is_open": false}
	]`)
	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

	tbl, err := c.Fetch(context.Background())
	require.NoError(t, err)

	cases := []struct {
		row      int
		column   string
		expected string
	}{
		{0, "lat", "38.7"},
		{0, "is_open", "True"},
		{0, "currently_waiting", "0"},
		{0, "stops", `['010101', '020202']`},
		{0, "email", "None"},
		{1, "lat", "-9.1"},
		{1, "is_open", "False"},
		{1, "stops", "nan"},
		{1, "email", "nan"},
	}
	for _, tc := range cases {
		got, ok := tbl.Value(tc.row, tc.column)
		require.True(t, ok, tc.column)
		assert.Equal(t, tc.expected, got, "row %d column %s", tc.row, tc.column)
	}
}

func TestFetch_OverwritesSourceTime(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"time": ["stale"], "id": ["1"]}`)
	c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

	tbl, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"time", "id"}, tbl.Columns())
	stamp, _ := tbl.Value(0, "time")
	assert.Regexp(t, timePattern, stamp)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"error":"gone"}`},
		{"server error", http.StatusInternalServerError, ""},
		{"invalid json", http.StatusOK, `{"id": [`},
		{"scalar body", http.StatusOK, `"hello"`},
		{"ragged columns", http.StatusOK, `{"id": ["1","2"], "name": ["a"]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, tc.status, tc.body)
			c := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))

			tbl, err := c.Fetch(context.Background())
			assert.Nil(t, tbl)
			assert.ErrorIs(t, err, encm.ErrFetch)
		})
	}
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, zaptest.NewLogger(t))
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, encm.ErrFetch)
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, 50*time.Millisecond, zaptest.NewLogger(t))
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, encm.ErrFetch)
}

func TestSchema(t *testing.T) {
	s := Schema()
	require.Len(t, s, 32)
	assert.Equal(t, "id", s[0].Name)
	assert.Equal(t, "time", s[len(s)-1].Name)

	seen := map[string]bool{}
	for _, f := range s {
		assert.False(t, seen[f.Name], "duplicate field %s", f.Name)
		seen[f.Name] = true
		assert.EqualValues(t, "STRING", f.Type)
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danee593/carris-encm/internal/pipeline"
	"github.com/danee593/carris-encm/internal/warehouse"
	"github.com/danee593/carris-encm/pkg/encm"
)

type stubRunner struct {
	summary  warehouse.Summary
	err      error
	triggers []pipeline.Trigger
}

func (s *stubRunner) Run(_ context.Context, trigger pipeline.Trigger) (warehouse.Summary, error) {
	s.triggers = append(s.triggers, trigger)
	return s.summary, s.err
}

func TestRun_Success(t *testing.T) {
	runner := &stubRunner{summary: warehouse.Summary{Table: "carris.encm", Rows: 42, Columns: 32, JobID: "encm_x"}}
	srv := httptest.NewServer(New(runner, zaptest.NewLogger(t)).Handler())
	defer srv.Close()

	for _, path := range []string{"/", "/run"} {
		t.Run(path, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(`{"message":{"data":"e30="}}`))
			require.NoError(t, err)
			req.Header.Set("Ce-Id", "evt-1")
			req.Header.Set("X-CloudScheduler-JobName", "encm-hourly")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "ok", body["status"])
			assert.EqualValues(t, 42, body["rows"])
			assert.EqualValues(t, 32, body["columns"])
			assert.Equal(t, "carris.encm", body["table"])
		})
	}

	require.Len(t, runner.triggers, 2)
	trig := runner.triggers[0]
	assert.Equal(t, `{"message":{"data":"e30="}}`, string(trig.Data))
	assert.Equal(t, "evt-1", trig.Context["Ce-Id"])
	assert.Equal(t, "encm-hourly", trig.Context["X-CloudScheduler-JobName"])
	assert.NotEmpty(t, trig.Context["request_id"])
}

func TestRun_PrintsSummaryLine(t *testing.T) {
	runner := &stubRunner{summary: warehouse.Summary{Table: "carris.encm", Rows: 42, Columns: 32}}
	var out bytes.Buffer
	h := New(runner, zaptest.NewLogger(t), WithOutput(&out)).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Loaded 42 rows and 32 columns to carris.encm\n", out.String())

	runner.err = fmt.Errorf("%w: status 503", encm.ErrFetch)
	out.Reset()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, out.String(), "failed runs print no summary")
}

func TestRun_ZeroRowsStillReported(t *testing.T) {
	runner := &stubRunner{summary: warehouse.Summary{Table: "carris.encm"}}
	rec := httptest.NewRecorder()
	New(runner, zaptest.NewLogger(t)).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":0`)
}

func TestRun_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"fetch", fmt.Errorf("%w: status 503", encm.ErrFetch), http.StatusBadGateway},
		{"load", fmt.Errorf("%w: job failed", encm.ErrLoad), http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubRunner{err: tc.err}
			rec := httptest.NewRecorder()
			New(runner, zaptest.NewLogger(t)).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

			assert.Equal(t, tc.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, tc.err.Error(), body.Error)
		})
	}
}

func TestHealth(t *testing.T) {
	runner := &stubRunner{}
	h := New(runner, zaptest.NewLogger(t)).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	assert.Empty(t, runner.triggers, "health checks never invoke the pipeline")
}

func TestRun_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&stubRunner{}, zaptest.NewLogger(t)).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(&stubRunner{}, zaptest.NewLogger(t)).ListenAndServe(ctx, addr, time.Second)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// Package server exposes the pipeline to schedulers and push subscriptions
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/danee593/carris-encm/internal/pipeline"
	"github.com/danee593/carris-encm/internal/warehouse"
	"github.com/danee593/carris-encm/pkg/encm"
)

const maxTriggerBytes = 1 << 20

// Trigger headers forwarded into the invocation context
var triggerHeaders = []string{
	"Ce-Id",
	"Ce-Source",
	"Ce-Type",
	"Ce-Time",
	"X-CloudScheduler-JobName",
	"X-CloudScheduler-ScheduleTime",
}

// Runner runs one invocation
type Runner interface {
	Run(ctx context.Context, trigger pipeline.Trigger) (warehouse.Summary, error)
}

// RunResponse is the JSON body of a successful POST / or POST /run
type RunResponse struct {
	Status  string `json:"status"`
	Rows    int64  `json:"rows"`
	Columns int    `json:"columns"`
	Table   string `json:"table"`
	JobID   string `json:"job_id"`
}

// ErrorResponse is the JSON body of a failed invocation
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Server handles trigger requests
type Server struct {
	runner    Runner
	out       io.Writer
	logger    *zap.Logger
	startedAt time.Time
}

// Option customizes a Server
type Option func(*Server)

// WithOutput sets where the summary line of each successful run is printed.
// Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Server) { s.out = w }
}

// New creates a server around runner
func New(runner Runner, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{runner: runner, out: os.Stdout, logger: logger, startedAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/", s.run)
	r.Post("/run", s.run)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight invocations for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("trigger server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down trigger server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"startedAt": s.startedAt,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTriggerBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Status: "error", Error: err.Error()})
		return
	}

	trigger := pipeline.Trigger{Data: data, Context: map[string]string{}}
	if id := middleware.GetReqID(r.Context()); id != "" {
		trigger.Context["request_id"] = id
	}
	for _, h := range triggerHeaders {
		if v := r.Header.Get(h); v != "" {
			trigger.Context[h] = v
		}
	}

	summary, err := s.runner.Run(r.Context(), trigger)
	if err != nil {
		s.logger.Error("invocation failed", zap.Error(err))
		writeJSON(w, statusFor(err), ErrorResponse{Status: "error", Error: err.Error()})
		return
	}

	s.logger.Info(summary.String(), zap.String("job_id", summary.JobID))
	fmt.Fprintln(s.out, summary.String())

	writeJSON(w, http.StatusOK, RunResponse{
		Status:  "ok",
		Rows:    summary.Rows,
		Columns: summary.Columns,
		Table:   summary.Table,
		JobID:   summary.JobID,
	})
}

// statusFor maps an invocation error to a response status. Any non-2xx
// makes the caller record the run as failed.
func statusFor(err error) int {
	switch {
	case errors.Is(err, encm.ErrFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

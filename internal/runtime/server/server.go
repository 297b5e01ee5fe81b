// Package server exposes the pipeline over HTTP: an invoke endpoint that takes
// the same event JSON as the queue trigger, read access to stored alerts, the
// stats snapshot and the Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/alertflow/internal/runtime/alert"
	errspkg "github.com/drblury/alertflow/internal/runtime/errors"
	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/pipeline"
	"github.com/drblury/alertflow/internal/runtime/storage"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	maxBodyBytes      = 6 << 20
)

// Invoker runs one batch. *pipeline.Processor implements it.
type Invoker interface {
	Invoke(ctx context.Context, batch alert.Batch) pipeline.Response
}

// Options configures a Server. Invoker is required; the other endpoints are
// only mounted when their collaborator is set.
type Options struct {
	Invoker            Invoker
	Reader             storage.Reader
	Stats              *pipeline.Stats
	Gatherer           prometheus.Gatherer
	Logger             logging.ServiceLogger
	CORSAllowedOrigins []string
}

type Server struct {
	invoker Invoker
	reader  storage.Reader
	stats   *pipeline.Stats
	logger  logging.ServiceLogger
	origins []string
	mux     *http.ServeMux
}

func New(opts Options) (*Server, error) {
	if opts.Invoker == nil {
		return nil, errors.New("server: invoker is required")
	}
	s := &Server{
		invoker: opts.Invoker,
		reader:  opts.Reader,
		stats:   opts.Stats,
		logger:  opts.Logger,
		origins: opts.CORSAllowedOrigins,
		mux:     http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}

	s.mux.HandleFunc("POST /invoke", s.handleInvoke)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.reader != nil {
		s.mux.HandleFunc("GET /alerts", s.handleListAlerts)
		s.mux.HandleFunc("GET /alerts/{id}", s.handleGetAlert)
	}
	if s.stats != nil {
		s.mux.HandleFunc("GET /api/stats", s.handleStats)
	}
	if opts.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s, nil
}

// Handler returns the routes wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := s.allowedOrigin(r.Header.Get("Origin")); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.mux.ServeHTTP(w, r)
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", logging.LogFields{"address": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("Stopping HTTP server", logging.LogFields{"address": addr})
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) allowedOrigin(requestOrigin string) string {
	if requestOrigin == "" {
		return ""
	}
	for _, allowed := range s.origins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var batch alert.Batch
	if err := jsoncodec.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), &batch); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid event: "+err.Error())
		return
	}

	resp := s.invoker.Invoke(r.Context(), batch)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write([]byte(resp.Body)); err != nil {
		s.logger.Error("Failed to write invoke response", err, nil)
	}
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.reader.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeMessage(w, http.StatusNotFound, "alert "+id+" not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to read alert", err, logging.LogFields{"id": id})
		s.writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := storage.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeMessage(w, http.StatusBadRequest, errspkg.ErrInvalidRecordLimit.Error())
			return
		}
		limit = parsed
	}

	records, err := s.reader.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list alerts", err, logging.LogFields{"limit": limit})
		s.writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []alert.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": records, "count": len(records)})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"message": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsoncodec.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response", err, nil)
	}
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/history"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/report"
)

// HTTPServer serves the daemon admin API: health, status, run history,
// manual triggers and Prometheus metrics.
type HTTPServer struct {
	server *http.Server
	daemon *Daemon
	port   int
	mchain func(http.Handler) http.Handler
}

// NewHTTPServer creates the admin server for the daemon.
func NewHTTPServer(daemon *Daemon, port int) *HTTPServer {
	return &HTTPServer{
		daemon: daemon,
		port:   port,
		mchain: middlewareChain(slog.Default()),
	}
}

// Start binds the admin port and begins serving. Binding happens up front so
// an occupied port fails startup instead of surfacing later in a goroutine.
func (s *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("admin port %d: %w", s.port, err)
	}

	s.server = &http.Server{
		Handler:      s.mchain(s.routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server error", logfields.Error(err))
		}
	}()

	slog.Info("Admin server started", slog.Int("port", s.port))
	return nil
}

// routes builds the admin API mux.
func (s *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatusPage)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("POST /api/trigger", s.handleTrigger)
	mux.Handle("GET /metrics", metrics.HTTPHandler(s.daemon.registry))
	return mux
}

// Stop gracefully shuts down the server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	slog.Info("Admin server stopped")
	return nil
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.daemon.StartTime()).Round(time.Second).String(),
	})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Status())
}

// handleStatusPage renders the daemon status and recent run history as HTML.
func (s *HTTPServer) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status()

	md := fmt.Sprintf("# matrixci — %s\n\n- State: %s\n- Uptime: %s\n- Queue: %d waiting, %d active\n\n",
		status.Pipeline, status.State, status.Uptime, status.QueueLength, status.ActiveJobs)

	runs, err := s.daemon.store.Recent(r.Context(), 20)
	if err != nil {
		slog.Warn("Failed to load run history for status page", logfields.Error(err))
	}
	md += report.HistoryMarkdown(runs)

	page, err := report.HTML(status.Pipeline, md)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to render status page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(page); err != nil {
		slog.Error("Failed to write status page", logfields.Error(err))
	}
}

func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer up to 500")
			return
		}
		limit = n
	}

	runs, err := s.daemon.store.Recent(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load run history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *HTTPServer) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	run, err := s.daemon.store.Run(r.Context(), runID)
	if err != nil {
		if errors.Is(err, history.ErrNoRuns) {
			writeJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	entries, err := s.daemon.store.EntriesFor(r.Context(), runID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load run entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"run": run, "entries": entries})
}

// handleTrigger enqueues a manual run. The trigger kind comes from a JSON
// body {"trigger":"cron"} or a ?trigger= query parameter, defaulting to push.
func (s *HTTPServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("trigger")
	if r.Body != nil && r.ContentLength != 0 {
		var body struct {
			Trigger string `json:"trigger"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.Trigger != "" {
			kind = body.Trigger
		}
	}
	if kind == "" {
		kind = string(pipeline.TriggerPush)
	}
	trigger, err := pipeline.ParseTrigger(kind)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.daemon.TriggerRun(trigger)
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  jobID,
		"trigger": string(trigger),
		"status":  string(JobStatusQueued),
	})
}

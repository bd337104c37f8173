// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/user/logscribe/internal/ledger"
	"github.com/user/logscribe/internal/types"
)

// RunStore is the read side of the run ledger.
type RunStore interface {
	RecentRuns(ctx context.Context, limit int) ([]ledger.Run, error)
	Run(ctx context.Context, prefix string) (*ledger.Run, error)
	Items(ctx context.Context, id types.BatchID) ([]ledger.Item, error)
}

// Trigger starts batches on demand.
type Trigger interface {
	Trigger() bool
	Running() bool
	Next() time.Time
}

// Server is the control API for a watching process.
type Server struct {
	runs    RunStore
	trigger Trigger
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates a Server. runs may be nil when the ledger is disabled.
func New(trigger Trigger, runs RunStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		runs:    runs,
		trigger: trigger,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/runs", s.handleRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	s.mux.HandleFunc("POST /api/process", s.handleProcess)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()
	s.logger.Info("control server started", "listen", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type healthResponse struct {
	Status  string     `json:"status"`
	Running bool       `json:"running"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Running: s.trigger.Running()}
	if next := s.trigger.Next(); !next.IsZero() {
		resp.NextRun = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run ledger not configured")
		return
	}
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

type runResponse struct {
	ledger.Run
	Items []ledger.Item `json:"items"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run ledger not configured")
		return
	}
	run, err := s.runs.Run(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case errors.Is(err, ledger.ErrAmbiguous):
		writeError(w, http.StatusBadRequest, "ambiguous run id")
		return
	case err != nil:
		s.logger.Error("get run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	items, err := s.runs.Items(r.Context(), run.ID)
	if err != nil {
		s.logger.Error("list run items failed", "run", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Run: *run, Items: items})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !s.trigger.Trigger() {
		writeError(w, http.StatusConflict, "batch already running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

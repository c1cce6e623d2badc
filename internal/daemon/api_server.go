package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"livesub/internal/api"
	"livesub/internal/config"
	"livesub/internal/logging"
	"livesub/internal/queue"
	"livesub/internal/services"
)

type apiServer struct {
	bind   string
	token  string
	cfg    *config.Config
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  cfg.Paths.APIToken,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           requestIDMiddleware(srv.routes()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /transcribe", authMiddleware(s.token, s.handleTranscribe))
	mux.HandleFunc("POST /cancel/{id}", authMiddleware(s.token, s.handleCancel))
	mux.HandleFunc("DELETE /cleanup/{id}", authMiddleware(s.token, s.handleCleanup))
	mux.HandleFunc("GET /api/tasks", authMiddleware(s.token, s.handleTasks))
	mux.HandleFunc("GET /api/tasks/{id}", authMiddleware(s.token, s.handleTask))
	mux.HandleFunc("GET /api/status", authMiddleware(s.token, s.handleStatus))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.daemon.workflow.IsCancelled(r.Context(), id) {
		s.writeJSON(w, http.StatusOK, api.MessageResponse{
			Message: fmt.Sprintf("Task %s is already cancelled.", id),
		})
		return
	}
	if err := s.daemon.workflow.Cancel(r.Context(), id); err != nil {
		s.writeTaskError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{
		Message: fmt.Sprintf("Task %s cancellation initiated.", id),
	})
}

func (s *apiServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := s.daemon.workflow.Cleanup(ctx, id); err != nil {
		s.writeTaskError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{
		Message: fmt.Sprintf("Task %s cleaned up successfully", id),
	})
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value), "validation")
			return
		}
		statuses = append(statuses, status)
	}
	tasks, err := s.daemon.workflow.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), services.Kind(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: api.FromTasks(tasks)})
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := s.daemon.workflow.Get(r.Context(), id)
	if err != nil {
		s.writeTaskError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: api.FromTask(task)})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	withHealth := r.URL.Query().Get("health") != "0"
	status := s.daemon.Status(r.Context(), withHealth)
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow, status.Health),
	})
}

func (s *apiServer) writeTaskError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, queue.ErrTaskNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Task %s not found.", id), "not_found")
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error(), services.Kind(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}

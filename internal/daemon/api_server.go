package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"demoflow/internal/api"
	"demoflow/internal/config"
	"demoflow/internal/logging"
	"demoflow/internal/services"
	"demoflow/internal/session"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	token := strings.TrimSpace(cfg.Paths.APIToken)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, authMiddleware(token, h))
	}
	route("GET /api/status", srv.handleStatus)
	route("GET /api/sessions", srv.handleListSessions)
	route("POST /api/sessions", srv.handleCreateSession)
	route("GET /api/sessions/{id}", srv.handleGetSession)
	route("DELETE /api/sessions/{id}", srv.handleDeleteSession)
	route("POST /api/sessions/{id}/workflow/{op}", srv.handleWorkflow)
	route("POST /api/sessions/{id}/upstream/{kind}", srv.handleUpstream)
	route("POST /api/sessions/{id}/backend/{op}", srv.handleBackend)
	route("POST /api/sessions/{id}/playback/{op}", srv.handlePlayback)
	route("POST /api/sessions/{id}/streams/{stream}/{signal}", srv.handleStream)
	route("GET /api/sessions/{id}/events", srv.handleEvents)
	mux.Handle("GET /metrics", d.metrics.Handler())
	srv.handler = mux

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled", logging.String(logging.FieldEventType, "api_disabled"))
		return nil
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		APIAddress:   status.APIAddress,
		Sessions:     status.Sessions,
	})
}

func (s *apiServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: s.daemon.registry.List()})
}

func (s *apiServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.daemon.registry.Create()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SessionResponse{Session: sess.View()})
}

func (s *apiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: sess.View()})
}

func (s *apiServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.registry.Delete(r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.daemon.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	return sess, true
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return services.Wrap(services.ErrValidation, "api", "decode body", "", err)
	}
	return nil
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

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeServiceError maps a marked error to its HTTP status. Client-side
// failures log at debug; server-side failures log at warn.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	attrs := []logging.Attr{
		logging.String("method", r.Method),
		logging.String("path", r.URL.Path),
		logging.Int("status", status),
		logging.Error(err),
	}
	if id := r.PathValue("id"); id != "" {
		attrs = append(attrs, logging.String(logging.FieldSessionID, id))
	}
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(s.logger, "api request failed", "api_request_failed",
			append(attrs,
				logging.String(logging.FieldImpact, "the request had no effect"),
				logging.String(logging.FieldErrorHint, "see the error for the failing dependency"),
			)...,
		)
	} else {
		s.logger.Debug("api request rejected", logging.Args(attrs...)...)
	}
	s.writeError(w, status, err.Error())
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"crossref/internal/engine"
	"crossref/internal/listing"
	"crossref/internal/logging"
	"crossref/internal/matcher"
	"crossref/internal/services"
)

// Server serves the engine over HTTP.
type Server struct {
	engine *engine.Engine
	bind   string
	token  string
	logger *slog.Logger
	lock   *flock.Flock

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New builds a Server from the engine's configuration.
func New(eng *engine.Engine, logger *slog.Logger) (*Server, error) {
	if eng == nil || eng.Config == nil {
		return nil, errors.New("server requires an engine")
	}
	bind := strings.TrimSpace(eng.Config.API.Bind)
	if bind == "" {
		return nil, services.Wrap(services.ErrConfiguration, "server", "new", "api bind address required", nil)
	}
	return &Server{
		engine: eng,
		bind:   bind,
		token:  eng.Config.API.Token,
		logger: logging.NewComponentLogger(logger, "api-server"),
		lock:   flock.New(eng.Config.LockPath()),
	}, nil
}

// Handler returns the routed handler with request ids and auth applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/match/channel", s.handleMatchChannel)
	mux.HandleFunc("/api/match/search", s.handleMatchSearch)
	mux.HandleFunc("/api/resolve/nebula", s.handleResolveNebula)
	mux.HandleFunc("/api/resolve/youtube", s.handleResolveYouTube)
	mux.HandleFunc("/api/cache/purge", s.handlePurge)
	return requestIDMiddleware(authMiddleware(s.token, mux))
}

// Run holds the instance lock and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another crossref server is already running (lock %s)", s.lock.Path())
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release server lock",
				logging.String(logging.FieldEventType, "server_unlock_failed"),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove "+s.lock.Path()+" if no server is running"),
				logging.String(logging.FieldImpact, "next start may report a running instance"))
		}
	}()

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth_required", s.token != ""))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr reports the listening address once Run has started listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status(queryBool(r, "entries")))
}

func (s *Server) handleMatchChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	query := r.URL.Query()
	channel, title := query.Get("channel"), query.Get("title")
	count, ok := s.queryInt(w, r, "count")
	if !ok {
		return
	}
	ctx := services.WithOperation(r.Context(), "match_channel")
	result, err := s.engine.Resolver.MatchOnChannel(ctx, channel, title, count)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := MatchResponse{Match: result}
	if queryBool(r, "debug") {
		resp.Ranking = s.ranking(ctx, listing.KindChannel, channel, title, count)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMatchSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	title := r.URL.Query().Get("title")
	count, ok := s.queryInt(w, r, "count")
	if !ok {
		return
	}
	ctx := services.WithOperation(r.Context(), "match_search")
	result, err := s.engine.Resolver.MatchBySearch(ctx, title, count)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := MatchResponse{Match: result}
	if queryBool(r, "debug") {
		resp.Ranking = s.ranking(ctx, listing.KindSearch, "", title, count)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveNebula(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	query := r.URL.Query()
	minConfidence := s.engine.Config.Resolution.MinConfidence
	if raw := strings.TrimSpace(query.Get("min")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "min must be a number between 0 and 1", Kind: "invalid_input"})
			return
		}
		minConfidence = parsed
	}
	res, err := s.engine.Resolver.ResolveNebula(r.Context(), query.Get("channel"), query.Get("title"), minConfidence)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Resolution: res})
}

func (s *Server) handleResolveYouTube(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	query := r.URL.Query()
	res, err := s.engine.Resolver.ResolveYouTube(r.Context(), query.Get("creator"), query.Get("nebula"), query.Get("title"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Resolution: res})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Purged: s.engine.Purge()})
}

func (s *Server) ranking(ctx context.Context, kind listing.Kind, key, title string, count int) []matcher.Ranked {
	ranked, err := s.engine.Resolver.Explain(ctx, kind, key, title, count)
	if err != nil {
		logging.WithContext(ctx, s.logger).Debug("ranking unavailable", logging.Error(err))
		return nil
	}
	return ranked
}

func (s *Server) queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: key + " must be a non-negative integer", Kind: "invalid_input"})
		return 0, false
	}
	return value, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.Kind(err)
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, kind = http.StatusGatewayTimeout, "timeout"
	case kind == "invalid_input":
		status = http.StatusBadRequest
	case kind == "not_found":
		status = http.StatusNotFound
	case kind == "configuration":
		status = http.StatusServiceUnavailable
	}
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(logger, "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see preceding nebula log lines for the upstream failure"),
			logging.String(logging.FieldImpact, "request answered with an error"))
	} else {
		logger.Debug("api request rejected", logging.String("path", r.URL.Path), logging.Int("status", status), logging.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func queryBool(r *http.Request, key string) bool {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	return value == "1" || strings.EqualFold(value, "true")
}

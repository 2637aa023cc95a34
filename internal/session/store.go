package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"crossref/internal/credentials"
	"crossref/internal/logging"
	"crossref/internal/services"
)

// Refresher exchanges the stored credential for a bearer token. An empty
// credential requests an anonymous token.
type Refresher interface {
	IssueToken(ctx context.Context, credential string) (string, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, credential string) (string, error)

// IssueToken calls f.
func (f RefresherFunc) IssueToken(ctx context.Context, credential string) (string, error) {
	return f(ctx, credential)
}

// Option customises Store construction.
type Option func(*Store)

// WithCredentialSource sets where the credential blob is read from on refresh.
func WithCredentialSource(src credentials.Source) Option {
	return func(s *Store) {
		s.source = src
	}
}

// WithLogger attaches a logger; the store tags it with its component name.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logging.NewComponentLogger(logger, "session")
	}
}

// Store holds the current bearer token for one engine instance. The token is
// never persisted; it lives until invalidated or the process exits.
type Store struct {
	refresher Refresher
	source    credentials.Source
	logger    *slog.Logger

	mu          sync.RWMutex
	token       string
	anonymous   bool
	generation  uint64
	refreshedAt time.Time

	// inflight is the shared refresh handle; every waiter joins the same call.
	inflight  singleflight.Group
	refreshes atomic.Int64
}

// Status is a point-in-time snapshot used by the CLI and API.
type Status struct {
	HasToken    bool      `json:"has_token"`
	Anonymous   bool      `json:"anonymous"`
	Refreshes   int64     `json:"refreshes"`
	RefreshedAt time.Time `json:"refreshed_at,omitzero"`
}

// New builds a Store around the provided refresher.
func New(refresher Refresher, opts ...Option) (*Store, error) {
	if refresher == nil {
		return nil, errors.New("session: refresher is nil")
	}
	s := &Store{
		refresher: refresher,
		logger:    logging.NewComponentLogger(nil, "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.source == nil {
		s.source = credentials.Chain{}
	}
	return s, nil
}

// Token returns the current token, refreshing when none is held. Concurrent
// callers that find the store empty share one refresh and observe the same
// outcome.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token, gen := s.token, s.generation
	s.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	return s.refreshFrom(ctx, gen)
}

// Refresh discards the current token and obtains a new one.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	s.Invalidate()
	return s.Token(ctx)
}

// Invalidate marks the current token unusable so the next Token call refreshes.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// InvalidateToken clears the token only if it still equals stale. A late expiry
// report for an old token must not discard one another caller just obtained.
func (s *Store) InvalidateToken(stale string) {
	s.mu.Lock()
	if s.token == stale {
		s.token = ""
	}
	s.mu.Unlock()
}

// Refreshes reports how many refresh round-trips have completed successfully.
func (s *Store) Refreshes() int64 {
	return s.refreshes.Load()
}

// Status returns a snapshot of the session.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		HasToken:    s.token != "",
		Anonymous:   s.anonymous,
		Refreshes:   s.refreshes.Load(),
		RefreshedAt: s.refreshedAt,
	}
}

func (s *Store) refreshFrom(ctx context.Context, seen uint64) (string, error) {
	// The shared call must not die with whichever caller happened to start it.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan("token", func() (any, error) {
		s.mu.RLock()
		token, gen := s.token, s.generation
		s.mu.RUnlock()
		if token != "" && gen != seen {
			// Another flight finished between our check and joining.
			return token, nil
		}
		return s.refresh(flightCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Store) refresh(ctx context.Context) (string, error) {
	logger := logging.WithContext(ctx, s.logger)

	credential, ok, err := s.source.Load()
	if err != nil {
		return "", services.Wrap(services.ErrAuthFailure, "session", "load credential", "", err)
	}
	if !ok {
		credential = ""
	}

	start := time.Now()
	token, err := s.refresher.IssueToken(ctx, credential)
	if err == nil && strings.TrimSpace(token) == "" {
		err = errors.New("empty token in response")
	}
	if err != nil {
		logging.WarnWithContext(logger, "token refresh failed", "session_refresh_failed",
			logging.Bool("anonymous", !ok),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check nebula.credential or network access to nebula.auth_url"),
			logging.String(logging.FieldImpact, "authenticated lookups fail until the next refresh succeeds"),
		)
		if errors.Is(err, services.ErrAuthFailure) {
			return "", err
		}
		return "", services.Wrap(services.ErrAuthFailure, "session", "refresh", "token issuance failed", err)
	}

	s.mu.Lock()
	s.token = token
	s.anonymous = !ok
	s.generation++
	s.refreshedAt = time.Now()
	s.mu.Unlock()
	count := s.refreshes.Add(1)

	logger.Info("session token refreshed",
		logging.Bool("anonymous", !ok),
		logging.Int("refreshes", int(count)),
		logging.Duration("latency", time.Since(start)),
	)
	return token, nil
}

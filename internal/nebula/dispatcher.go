package nebula

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"crossref/internal/logging"
	"crossref/internal/services"
)

// TokenSource is the slice of the session store the dispatcher needs.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	InvalidateToken(stale string)
}

// Dispatcher wraps Transport with the session: it attaches the bearer token,
// classifies every response and, on expiry, refreshes once and retries once.
// It is the only place refresh-and-retry happens.
type Dispatcher struct {
	transport *Transport
	tokens    TokenSource
	logger    *slog.Logger
}

// NewDispatcher builds a Dispatcher. logger may be nil.
func NewDispatcher(transport *Transport, tokens TokenSource, logger *slog.Logger) (*Dispatcher, error) {
	if transport == nil {
		return nil, errors.New("nebula: transport is nil")
	}
	if tokens == nil {
		return nil, errors.New("nebula: token source is nil")
	}
	return &Dispatcher{
		transport: transport,
		tokens:    tokens,
		logger:    logging.NewComponentLogger(logger, "nebula"),
	}, nil
}

// Do sends req and returns the payload of a successful response. Errors carry
// services.ErrAuthFailure when a token could not be obtained or expired twice,
// services.ErrNotFound for 404 and services.ErrTransport for everything else.
func (d *Dispatcher) Do(ctx context.Context, req Request) (Response, error) {
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, d.logger).With(
		logging.String("method", req.Method),
		logging.String("path", pathOf(req.URL)),
	)

	resp, token, err := d.attempt(ctx, req)
	if err != nil {
		return Response{}, err
	}
	class := Classify(resp)
	if class.Outcome != OutcomeExpired {
		return finish(resp, class)
	}

	if !req.RequiresAuth {
		return Response{}, services.Wrap(services.ErrAuthFailure, "nebula", "dispatch", "unauthenticated request rejected: "+class.Detail, nil)
	}

	logger.Info("bearer token expired, refreshing", logging.String("detail", class.Detail))
	d.tokens.InvalidateToken(token)

	resp, token, err = d.attempt(ctx, req)
	if err != nil {
		return Response{}, err
	}
	class = Classify(resp)
	if class.Outcome == OutcomeExpired {
		d.tokens.InvalidateToken(token)
		logging.WarnWithContext(logger, "token expired again after refresh", "nebula_auth_failed",
			logging.String("detail", class.Detail),
			logging.String(logging.FieldErrorHint, "verify the nebula credential is still valid"),
			logging.String(logging.FieldImpact, "request abandoned"),
		)
		return Response{}, services.Wrap(services.ErrAuthFailure, "nebula", "dispatch", "token rejected after refresh", nil)
	}
	return finish(resp, class)
}

// DoJSON is Do followed by decoding the body into out.
func (d *Dispatcher) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := d.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return services.Wrap(services.ErrTransport, "nebula", pathOf(req.URL), "malformed response: "+snippet(resp.Body), err)
	}
	return nil
}

func (d *Dispatcher) attempt(ctx context.Context, req Request) (Response, string, error) {
	var token string
	if req.RequiresAuth {
		var err error
		token, err = d.tokens.Token(ctx)
		if err != nil {
			if errors.Is(err, services.ErrAuthFailure) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Response{}, "", err
			}
			return Response{}, "", services.Wrap(services.ErrAuthFailure, "nebula", "dispatch", "obtain token", err)
		}
	}

	start := time.Now()
	resp, err := d.transport.Send(ctx, req, token)
	if err != nil {
		return Response{}, token, err
	}
	logging.WithContext(ctx, d.logger).Debug("nebula request completed",
		logging.String("path", pathOf(req.URL)),
		logging.Int("status", resp.Status),
		logging.Duration("latency", time.Since(start)),
	)
	return resp, token, nil
}

func finish(resp Response, class Classification) (Response, error) {
	if class.Outcome == OutcomeError && class.Status == http.StatusNotFound {
		return Response{}, services.Wrap(services.ErrNotFound, "nebula", "dispatch", class.Detail, nil)
	}
	if class.Outcome == OutcomeError {
		return Response{}, services.Wrap(services.ErrTransport, "nebula", "dispatch", class.Detail, nil)
	}
	return resp, nil
}

func pathOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return u.Path
	}
	return raw
}

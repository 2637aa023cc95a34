package nebula

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"crossref/internal/services"
	"crossref/internal/session"
)

// Authorizer issues bearer tokens from the authorization endpoint. It talks to
// the Transport directly since the Dispatcher depends on the tokens it issues.
type Authorizer struct {
	transport *Transport
	authURL   string
}

var _ session.Refresher = (*Authorizer)(nil)

// NewAuthorizer builds an Authorizer for authURL.
func NewAuthorizer(transport *Transport, authURL string) (*Authorizer, error) {
	if transport == nil {
		return nil, errors.New("nebula: transport is nil")
	}
	authURL = strings.TrimSpace(authURL)
	if authURL == "" {
		return nil, errors.New("nebula: auth url required")
	}
	return &Authorizer{transport: transport, authURL: authURL}, nil
}

// IssueToken exchanges credential for a token, or requests an anonymous token
// when credential is empty. The credential is forwarded verbatim.
func (a *Authorizer) IssueToken(ctx context.Context, credential string) (string, error) {
	req := Request{
		Method: http.MethodPost,
		URL:    a.authURL,
		Body:   map[string]any{},
		Header: http.Header{},
	}
	if credential != "" {
		req.Header.Set("Authorization", "Token "+credential)
	}

	resp, err := a.transport.Send(ctx, req, "")
	if err != nil {
		return "", services.Wrap(services.ErrAuthFailure, "nebula", "authorize", "", err)
	}
	if class := Classify(resp); class.Outcome != OutcomeOK {
		return "", services.Wrap(services.ErrAuthFailure, "nebula", "authorize", class.Detail, nil)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", services.Wrap(services.ErrAuthFailure, "nebula", "authorize", "malformed response: "+snippet(resp.Body), err)
	}
	token := strings.TrimSpace(payload.Token)
	if token == "" {
		return "", services.Wrap(services.ErrAuthFailure, "nebula", "authorize", "missing token in response", nil)
	}
	return token, nil
}

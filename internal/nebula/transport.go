package nebula

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"crossref/internal/services"
)

const (
	maxResponseBytes = 8 << 20
	maxSnippetBytes  = 200
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Request is one logical call. URL is absolute; Query is merged into it.
type Request struct {
	Method       string
	URL          string
	Query        url.Values
	Body         any
	Header       http.Header
	RequiresAuth bool
}

// Response is the raw status and body of a completed call.
type Response struct {
	Status int
	Body   []byte
}

// Transport performs single HTTP round-trips under an outbound rate limit.
type Transport struct {
	client    HTTPDoer
	limiter   *rate.Limiter
	userAgent string
}

// NewTransport wraps client. A nil limiter disables rate limiting.
func NewTransport(client HTTPDoer, limiter *rate.Limiter) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Transport{client: client, limiter: limiter, userAgent: "crossref/1.0"}
}

// NewLimiter builds the limiter used by NewTransport; rps <= 0 means unlimited.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Send executes req. bearer, when non-empty, is sent as the Authorization
// header. Only failures to complete the round-trip are returned as errors;
// every HTTP status is handed back for classification.
func (t *Transport) Send(ctx context.Context, req Request, bearer string) (Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Response{}, services.Wrap(services.ErrTransport, "nebula", "rate limit", "", err)
	}

	target, err := url.Parse(req.URL)
	if err != nil {
		return Response{}, services.Wrap(services.ErrTransport, "nebula", "build request", "invalid url", err)
	}
	if len(req.Query) > 0 {
		merged := target.Query()
		for key, values := range req.Query {
			merged[key] = append([]string(nil), values...)
		}
		target.RawQuery = merged.Encode()
	}

	var reader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, services.Wrap(services.ErrTransport, "nebula", "build request", "encode body", err)
		}
		reader = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return Response{}, services.Wrap(services.ErrTransport, "nebula", "build request", "", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.userAgent)
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Response{}, services.Wrap(services.ErrTransport, "nebula", fmt.Sprintf("%s %s", method, target.Path), "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, services.Wrap(services.ErrTransport, "nebula", fmt.Sprintf("%s %s", method, target.Path), "read body", err)
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxSnippetBytes {
		return s
	}
	cut := maxSnippetBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

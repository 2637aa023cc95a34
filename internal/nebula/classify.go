package nebula

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome tags the result of one round-trip.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeExpired
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeExpired:
		return "expired"
	default:
		return "error"
	}
}

// Classification is the tagged result of Classify. Detail is set for
// OutcomeError and OutcomeExpired.
type Classification struct {
	Outcome Outcome
	Status  int
	Detail  string
}

// Markers of an expired or rejected bearer token in the "detail" field.
var expiryMarkers = []string{
	"signature has expired",
	"token has expired",
	"token is expired",
	"expired token",
}

// Classify inspects a response. Token expiry is recognised from the body
// regardless of status code, since the API reports it with 200 and 401 alike.
func Classify(resp Response) Classification {
	if detail, ok := errorDetail(resp.Body); ok {
		lowered := strings.ToLower(detail)
		for _, marker := range expiryMarkers {
			if strings.Contains(lowered, marker) {
				return Classification{Outcome: OutcomeExpired, Status: resp.Status, Detail: detail}
			}
		}
	}
	if resp.Status < 200 || resp.Status > 299 {
		return Classification{
			Outcome: OutcomeError,
			Status:  resp.Status,
			Detail:  fmt.Sprintf("status %d: %s", resp.Status, snippet(resp.Body)),
		}
	}
	return Classification{Outcome: OutcomeOK, Status: resp.Status}
}

func errorDetail(body []byte) (string, bool) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return "", false
	}
	switch v := payload.Detail.(type) {
	case string:
		return v, v != ""
	case nil:
		return "", false
	default:
		raw, _ := json.Marshal(v)
		return string(raw), true
	}
}

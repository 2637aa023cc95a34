package server

import (
	"crossref/internal/matcher"
	"crossref/internal/resolve"
)

// MatchResponse is returned by the match endpoints. Ranking is only set when
// the request asks for debug output.
type MatchResponse struct {
	Match   matcher.MatchResult `json:"match"`
	Ranking []matcher.Ranked    `json:"ranking,omitempty"`
}

// ResolveResponse wraps a tiered resolution.
type ResolveResponse struct {
	Resolution resolve.Resolution `json:"resolution"`
}

// PurgeResponse reports how many listings were dropped.
type PurgeResponse struct {
	Purged int `json:"purged"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

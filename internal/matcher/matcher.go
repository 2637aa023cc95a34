package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"crossref/internal/listing"
)

// containmentWeight scales the length ratio awarded when one title contains
// the other, keeping it below an exact match.
const containmentWeight = 0.9

// MatchResult is the best candidate for a target title.
type MatchResult struct {
	Confidence float64 `json:"confidence"`
	VideoID    string  `json:"video_id"`
}

// Ranked is one scored candidate.
type Ranked struct {
	Video        listing.Video `json:"video"`
	Confidence   float64       `json:"confidence"`
	TokenOverlap float64       `json:"token_overlap"`
}

// Score compares two titles in [0, 1].
func Score(a, b string) float64 {
	return scoreNormalized(Normalize(a), Normalize(b))
}

func scoreNormalized(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longer, shorter := max(la, lb), min(la, lb)

	ratio := 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longer)
	if ratio < 0 {
		ratio = 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		ratio = max(ratio, containmentWeight*float64(shorter)/float64(longer))
	}
	return ratio
}

// BestMatch returns the highest scoring candidate. Ties keep the earliest
// candidate, which is the newest in listing order. ok is false only when there
// are no candidates.
func BestMatch(target string, candidates []listing.Video) (MatchResult, bool) {
	if len(candidates) == 0 {
		return MatchResult{}, false
	}
	normalizedTarget := Normalize(target)
	best := MatchResult{Confidence: -1}
	for _, candidate := range candidates {
		score := scoreNormalized(normalizedTarget, Normalize(candidate.Title))
		if score > best.Confidence {
			best = MatchResult{Confidence: score, VideoID: candidate.ID}
		}
	}
	return best, true
}

// Rank scores every candidate, best first. Equal scores keep listing order.
func Rank(target string, candidates []listing.Video) []Ranked {
	normalizedTarget := Normalize(target)
	targetPrint := NewFingerprint(normalizedTarget)
	ranked := make([]Ranked, len(candidates))
	for i, candidate := range candidates {
		normalized := Normalize(candidate.Title)
		ranked[i] = Ranked{
			Video:        candidate,
			Confidence:   scoreNormalized(normalizedTarget, normalized),
			TokenOverlap: CosineSimilarity(targetPrint, NewFingerprint(normalized)),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

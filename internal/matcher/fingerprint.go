package matcher

import (
	"math"
	"strings"
)

// Fingerprint is a term-frequency vector over the words of a normalized title.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint builds a fingerprint from a normalized title. Returns nil
// when the title has no words.
func NewFingerprint(normalized string) *Fingerprint {
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(words))
	for _, word := range words {
		counts[word]++
	}
	var sum float64
	for _, count := range counts {
		sum += count * count
	}
	return &Fingerprint{tokens: counts, norm: math.Sqrt(sum)}
}

// CosineSimilarity compares two fingerprints. Returns 0 if either is nil.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	return dot / (a.norm * b.norm)
}

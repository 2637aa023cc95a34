package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the comparison form of a title. Normalizing an already
// normalized string returns it unchanged.
func Normalize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	// Transformers and casers carry state, so each call builds its own.
	stripped, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), input)
	if err != nil {
		stripped = input
	}
	folded := cases.Fold().String(stripped)

	var builder strings.Builder
	builder.Grow(len(folded))
	pendingSpace := false
	emit := func(s string) {
		if pendingSpace && builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		pendingSpace = false
		builder.WriteString(s)
	}
	for _, r := range folded {
		switch {
		case r == '&' || r == '+':
			pendingSpace = true
			emit("and")
			pendingSpace = true
		case unicode.IsLetter(r), unicode.IsDigit(r):
			emit(string(r))
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return builder.String()
}

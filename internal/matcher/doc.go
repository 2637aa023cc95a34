// Package matcher scores listing titles against a target title.
//
// Titles are compared after Normalize: compatibility decomposition, diacritic
// stripping, case folding, "&" and "+" spelled as "and", punctuation dropped
// and whitespace collapsed. Score combines a Levenshtein ratio with a
// containment bonus so that a title embedded in a longer one still ranks well.
// Only exact normalized equality scores 1.
package matcher

// Package listing caches ordered video listings per source (a Nebula channel,
// a Nebula search query or a YouTube uploads playlist) and grows them on demand.
//
// Ensure serves a cached prefix with no network traffic when enough items are
// held, otherwise it fetches only the missing remainder through a Fetcher,
// continuing from the stored cursor. At most one fetch per key is outstanding.
package listing

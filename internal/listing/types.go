package listing

import (
	"context"
	"time"
)

// Kind namespaces cache keys so a channel slug and a search query that happen
// to be equal never share an entry.
type Kind string

const (
	KindChannel Kind = "channel"
	KindSearch  Kind = "search"
	// KindUploads holds YouTube uploads playlists for reverse lookups.
	KindUploads Kind = "uploads"
)

// Video is one immutable listing record.
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// Page is one batch returned by a Fetcher. NextCursor is empty when the source
// has nothing further. Received counts the rows the source returned before
// unusable ones were dropped; zero means len(Items).
type Page struct {
	Items      []Video
	NextCursor string
	Received   int
}

func (p Page) received() int {
	if p.Received > 0 {
		return p.Received
	}
	return len(p.Items)
}

// Fetcher retrieves up to limit items of a listing, continuing after cursor
// (empty cursor means from the newest item).
type Fetcher interface {
	FetchPage(ctx context.Context, kind Kind, key, cursor string, limit int) (Page, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, kind Kind, key, cursor string, limit int) (Page, error)

// FetchPage calls f.
func (f FetcherFunc) FetchPage(ctx context.Context, kind Kind, key, cursor string, limit int) (Page, error) {
	return f(ctx, kind, key, cursor, limit)
}

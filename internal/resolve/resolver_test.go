package resolve_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"crossref/internal/creators"
	"crossref/internal/listing"
	"crossref/internal/resolve"
	"crossref/internal/services"
)

type call struct {
	kind listing.Kind
	key  string
}

// source serves fixed listings; keys missing from lists report not found.
type source struct {
	mu    sync.Mutex
	lists map[call][]listing.Video
	fail  map[call]error
	calls []call
}

func newSource() *source {
	return &source{lists: make(map[call][]listing.Video), fail: make(map[call]error)}
}

func (s *source) set(kind listing.Kind, key string, titles ...string) {
	videos := make([]listing.Video, len(titles))
	for i, title := range titles {
		videos[i] = listing.Video{ID: fmt.Sprintf("%s-%d", key, i), Title: title}
	}
	s.lists[call{kind, key}] = videos
}

func (s *source) FetchPage(_ context.Context, kind listing.Kind, key, cursor string, limit int) (listing.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := call{kind, key}
	s.calls = append(s.calls, c)
	if err := s.fail[c]; err != nil {
		return listing.Page{}, err
	}
	videos, ok := s.lists[c]
	if !ok {
		return listing.Page{}, services.Wrap(services.ErrNotFound, "test", "fetch", key, nil)
	}
	offset := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &offset)
	}
	end := min(offset+limit, len(videos))
	page := listing.Page{Items: append([]listing.Video(nil), videos[offset:end]...)}
	if end < len(videos) {
		page.NextCursor = fmt.Sprint(end)
	}
	return page, nil
}

func (s *source) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = string(c.kind) + ":" + c.key
	}
	return out
}

var registry = creators.NewStatic([]creators.Creator{
	{Name: "Half as Interesting", Nebula: "hai", NebulaAlt: "hai-extra", Channel: "UChai"},
	{Name: "Solo", Nebula: "solo", Channel: "UCsolo"},
	{Name: "Nowhere", Channel: "UCnowhere", Uploads: "UUnowhere"},
})

func newResolver(t *testing.T, src *source, opts resolve.Options) *resolve.Resolver {
	t.Helper()
	cache, err := listing.NewCache(src)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	r, err := resolve.New(cache, registry, opts)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r
}

func TestMatchOnChannelValidatesInput(t *testing.T) {
	r := newResolver(t, newSource(), resolve.Options{})
	if _, err := r.MatchOnChannel(context.Background(), "", "title", 50); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank channel, got %v", err)
	}
	if _, err := r.MatchOnChannel(context.Background(), "hai", "  ", 50); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank title, got %v", err)
	}
	if _, err := r.MatchBySearch(context.Background(), "?!", 50); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for title without words, got %v", err)
	}
}

func TestPunctuationOnlyTitleIsInvalidEverywhere(t *testing.T) {
	src := newSource()
	src.set(listing.KindChannel, "hai", "Real Video", "???")
	ytSrc := newSource()
	ytCache, err := listing.NewCache(ytSrc)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	r := newResolver(t, src, resolve.Options{YouTube: ytCache})
	ctx := context.Background()

	if got, err := r.MatchOnChannel(ctx, "hai", "?!", 50); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %+v err %v", got, err)
	}
	if got, err := r.ResolveNebula(ctx, "UChai", "?!", 0.5); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %+v err %v", got, err)
	}
	if got, err := r.ResolveYouTube(ctx, "Solo", "", "!!"); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %+v err %v", got, err)
	}
	if _, err := r.Explain(ctx, listing.KindChannel, "hai", "--", 10); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input from explain, got %v", err)
	}
	if len(src.keys()) != 0 || len(ytSrc.keys()) != 0 {
		t.Fatalf("no listing should be fetched, got %v %v", src.keys(), ytSrc.keys())
	}
}

func TestMatchOnChannelEmptyChannelIsNotFound(t *testing.T) {
	src := newSource()
	src.set(listing.KindChannel, "empty")
	r := newResolver(t, src, resolve.Options{})

	if _, err := r.MatchOnChannel(context.Background(), "empty", "Anything", 50); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMatchBySearchUsesNormalizedQuery(t *testing.T) {
	src := newSource()
	src.set(listing.KindSearch, "salt and pepper", "Salt & Pepper!")
	r := newResolver(t, src, resolve.Options{})

	got, err := r.MatchBySearch(context.Background(), "SALT & PEPPER", 10)
	if err != nil {
		t.Fatalf("match by search: %v", err)
	}
	if got.Confidence != 1 || got.VideoID != "salt and pepper-0" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestResolveNebulaPrimaryTierShortCircuits(t *testing.T) {
	src := newSource()
	src.set(listing.KindChannel, "hai", "Toll Roads", "Canals")
	r := newResolver(t, src, resolve.Options{LinkBaseURL: "https://nebula.example/"})

	got, err := r.ResolveNebula(context.Background(), "UChai", "canals", 0.8)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Kind != resolve.KindVideo || got.VideoID != "hai-1" || got.Tier != "hai" {
		t.Fatalf("unexpected resolution %+v", got)
	}
	if got.Link != "https://nebula.example/videos/hai-1" {
		t.Fatalf("unexpected link %q", got.Link)
	}
	if keys := src.keys(); len(keys) != 1 {
		t.Fatalf("expected only the primary tier to run, got %v", keys)
	}
}

func TestResolveNebulaFallsThroughTiersInOrder(t *testing.T) {
	src := newSource()
	src.set(listing.KindChannel, "hai", "Toll Roads")
	src.set(listing.KindChannel, "hai-extra", "Lighthouses")
	src.set(listing.KindSearch, "ghost stations", "Ghost Stations")
	r := newResolver(t, src, resolve.Options{})

	got, err := r.ResolveNebula(context.Background(), "UChai", "Ghost Stations", 0.9)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Kind != resolve.KindSearch || got.VideoID != "ghost stations-0" {
		t.Fatalf("unexpected resolution %+v", got)
	}
	want := []string{"channel:hai", "channel:hai-extra", "search:ghost stations"}
	if keys := src.keys(); fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Fatalf("expected tiers %v, got %v", want, keys)
	}
}

func TestResolveNebulaAlternateTier(t *testing.T) {
	src := newSource()
	src.set(listing.KindChannel, "hai-extra", "Lighthouses")
	r := newResolver(t, src, resolve.Options{})

	got, err := r.ResolveNebula(context.Background(), "UChai", "Lighthouses", 0.9)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Tier != "hai-extra" || got.Kind != resolve.KindVideo {
		t.Fatalf("expected alternate channel tier, got %+v", got)
	}
}

func TestResolveNebulaChannelLinkLastResort(t *testing.T) {
	src := newSource()
	src.set(listing.KindChannel, "solo", "Toll Roads")
	src.fail[call{listing.KindSearch, "ghost stations"}] = services.Wrap(services.ErrTransport, "test", "search", "boom", nil)
	r := newResolver(t, src, resolve.Options{})

	got, err := r.ResolveNebula(context.Background(), "UCsolo", "Ghost Stations", 0.9)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Kind != resolve.KindChannel || got.Link != "https://nebula.tv/solo" || got.VideoID != "" {
		t.Fatalf("unexpected resolution %+v", got)
	}
}

func TestResolveNebulaSurfacesLastFailureWithoutChannel(t *testing.T) {
	src := newSource()
	src.fail[call{listing.KindSearch, "ghost stations"}] = services.Wrap(services.ErrAuthFailure, "test", "search", "rejected", nil)
	r := newResolver(t, src, resolve.Options{})

	_, err := r.ResolveNebula(context.Background(), "UCnowhere", "Ghost Stations", 0.5)
	if !errors.Is(err, services.ErrAuthFailure) {
		t.Fatalf("expected auth failure surfaced, got %v", err)
	}
}

func TestResolveNebulaNotFound(t *testing.T) {
	src := newSource()
	r := newResolver(t, src, resolve.Options{})

	if _, err := r.ResolveNebula(context.Background(), "UCnowhere", "Ghost Stations", 0.5); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := r.ResolveNebula(context.Background(), "UCunknown", "Ghost Stations", 0.5); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown creator, got %v", err)
	}
}

func TestResolveYouTube(t *testing.T) {
	nebulaSrc := newSource()
	ytSrc := newSource()
	ytSrc.set(listing.KindUploads, "UUhai", "Toll Roads", "The Problem with Canals")
	ytCache, err := listing.NewCache(ytSrc, listing.WithMaxPageSize(50))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	r := newResolver(t, nebulaSrc, resolve.Options{YouTube: ytCache, MinConfidence: 0.5})

	got, err := r.ResolveYouTube(context.Background(), "half as interesting", "", "The Problem with Canals")
	if err != nil {
		t.Fatalf("resolve youtube: %v", err)
	}
	if got.VideoID != "UUhai-1" || got.Link != "https://www.youtube.com/watch?v=UUhai-1" || got.Confidence != 1 {
		t.Fatalf("unexpected resolution %+v", got)
	}

	if _, err := r.ResolveYouTube(context.Background(), "", "hai", "Zzzzzzzzzzzzzzzzzzzzzzzzzzzz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found below threshold, got %v", err)
	}
	if _, err := r.ResolveYouTube(context.Background(), "Nobody", "", "Canals"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown creator, got %v", err)
	}
}

func TestResolveYouTubeFallsBackToSearch(t *testing.T) {
	ytSrc := newSource()
	ytSrc.set(listing.KindUploads, "UUsolo", "Toll Roads")
	ytSrc.set(listing.KindSearch, "the future of canals", "Unrelated Clip", "The Future of Canals")
	ytCache, err := listing.NewCache(ytSrc)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	r := newResolver(t, newSource(), resolve.Options{YouTube: ytCache, MinConfidence: 0.8})

	got, err := r.ResolveYouTube(context.Background(), "", "solo", "The Future of Canals")
	if err != nil {
		t.Fatalf("resolve youtube: %v", err)
	}
	if got.Tier != "search" || got.VideoID != "the future of canals-1" || got.Creator != "Solo" {
		t.Fatalf("unexpected resolution %+v", got)
	}
	want := []string{"uploads:UUsolo", "search:the future of canals"}
	if keys := ytSrc.keys(); fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Fatalf("expected tiers %v, got %v", want, keys)
	}
}

func TestResolveYouTubeSurfacesSearchFailure(t *testing.T) {
	ytSrc := newSource()
	ytSrc.set(listing.KindUploads, "UUsolo", "Toll Roads")
	ytSrc.fail[call{listing.KindSearch, "canals"}] = services.Wrap(services.ErrTransport, "test", "search", "quota exceeded", nil)
	ytCache, err := listing.NewCache(ytSrc)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	r := newResolver(t, newSource(), resolve.Options{YouTube: ytCache, MinConfidence: 0.8})

	if _, err := r.ResolveYouTube(context.Background(), "Solo", "", "Canals"); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected the search failure to surface, got %v", err)
	}
}

func TestResolveYouTubeDisabled(t *testing.T) {
	r := newResolver(t, newSource(), resolve.Options{})
	if _, err := r.ResolveYouTube(context.Background(), "Solo", "", "Canals"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestExplainRanksCandidates(t *testing.T) {
	src := newSource()
	src.set(listing.KindChannel, "hai", "Shipping Containers", "Toll Roads")
	r := newResolver(t, src, resolve.Options{})

	ranked, err := r.Explain(context.Background(), listing.KindChannel, "hai", "toll roads", 10)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if len(ranked) != 2 || ranked[0].Video.ID != "hai-1" {
		t.Fatalf("unexpected ranking %+v", ranked)
	}
}

package nebula_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"crossref/internal/listing"
	"crossref/internal/nebula"
	"crossref/internal/services"
	"crossref/internal/testsupport"
)

func TestChannelVideosPaginatesWithCursor(t *testing.T) {
	s := newStack(t)
	episodes := s.fake.AddChannel("hai", 120)

	first, err := s.client.ChannelVideos(context.Background(), "hai", "", 50)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Items) != 50 || first.NextCursor == "" {
		t.Fatalf("unexpected first page: %d items, cursor %q", len(first.Items), first.NextCursor)
	}
	if first.Items[0].ID != episodes[0].Slug || first.Items[0].Title != episodes[0].Title {
		t.Fatalf("unexpected first item %+v", first.Items[0])
	}
	if first.Items[0].PublishedAt.IsZero() {
		t.Fatal("expected published time to be parsed")
	}

	second, err := s.client.ChannelVideos(context.Background(), "hai", first.NextCursor, 100)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Items) != 70 {
		t.Fatalf("expected remaining 70 items, got %d", len(second.Items))
	}
	if second.Items[0].ID != episodes[50].Slug {
		t.Fatalf("expected continuation at item 50, got %s", second.Items[0].ID)
	}
	if second.NextCursor != "" {
		t.Fatalf("expected no continuation at end, got %q", second.NextCursor)
	}
}

func TestSearchVideosMatchesAcrossChannels(t *testing.T) {
	s := newStack(t)
	s.fake.SetChannel("alpha", testsupport.FakeEpisode{Slug: "a-1", Title: "Canals of Venice"})
	s.fake.SetChannel("beta", testsupport.FakeEpisode{Slug: "b-1", Title: "Why canals freeze"}, testsupport.FakeEpisode{Slug: "b-2", Title: "Bridges"})

	page, err := s.client.SearchVideos(context.Background(), "canals", "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "a-1" || page.Items[1].ID != "b-1" {
		t.Fatalf("unexpected search results %+v", page.Items)
	}
}

func TestClientRejectsBlankInput(t *testing.T) {
	s := newStack(t)
	if _, err := s.client.ChannelVideos(context.Background(), " ", "", 10); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank slug, got %v", err)
	}
	if _, err := s.client.SearchVideos(context.Background(), "", "", 10); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank query, got %v", err)
	}
	if s.fake.ContentCalls() != 0 {
		t.Fatal("expected no requests for blank input")
	}
}

func TestVideoFetchesSingleEpisode(t *testing.T) {
	s := newStack(t)
	s.fake.SetChannel("hai", testsupport.FakeEpisode{Slug: "hai-ep", Title: "Lighthouses"})

	ep, err := s.client.Video(context.Background(), "hai-ep")
	if err != nil {
		t.Fatalf("video: %v", err)
	}
	if ep.Title != "Lighthouses" || ep.ChannelSlug != "hai" {
		t.Fatalf("unexpected episode %+v", ep)
	}
	if _, err := s.client.Video(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClientBacksListingCache(t *testing.T) {
	s := newStack(t)
	s.fake.AddChannel("hai", 120)

	cache, err := listing.NewCache(s.client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()
	if items, err := cache.Ensure(ctx, listing.KindChannel, "hai", 50); err != nil || len(items) != 50 {
		t.Fatalf("ensure 50: %d items, err %v", len(items), err)
	}
	if items, err := cache.Ensure(ctx, listing.KindChannel, "hai", 100); err != nil || len(items) != 100 {
		t.Fatalf("ensure 100: %d items, err %v", len(items), err)
	}
	if items, err := cache.Ensure(ctx, listing.KindChannel, "hai", 80); err != nil || len(items) != 80 {
		t.Fatalf("ensure 80: %d items, err %v", len(items), err)
	}
	if got := s.fake.ContentCalls(); got != 2 {
		t.Fatalf("expected two listing requests, got %d", got)
	}
}

func TestFetchPageRejectsUnknownKind(t *testing.T) {
	s := newStack(t)
	if _, err := s.client.FetchPage(context.Background(), listing.KindUploads, "x", "", 10); err == nil {
		t.Fatal("expected error for uploads kind")
	}
}

func TestChannelVideosReportsRawRowCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"next":"https://content.example/video_channels/hai/video_episodes/?cursor=c3","results":[` +
			`{"slug":"hai-000","title":"First"},{"title":"Broken row"},{"slug":"hai-002","title":"Third"}]}`))
	}))
	t.Cleanup(server.Close)

	dispatcher, err := nebula.NewDispatcher(nebula.NewTransport(server.Client(), nil), fixedTokens("fixed"), nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	client, err := nebula.NewClient(dispatcher, server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	page, err := client.ChannelVideos(context.Background(), "hai", "", 3)
	if err != nil {
		t.Fatalf("channel videos: %v", err)
	}
	if len(page.Items) != 2 || page.Received != 3 {
		t.Fatalf("expected 2 kept of 3 received, got %d of %d", len(page.Items), page.Received)
	}
	if page.NextCursor != "c3" {
		t.Fatalf("unexpected cursor %q", page.NextCursor)
	}
}

package listing_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"crossref/internal/listing"
	"crossref/internal/services"
)

type fetchCall struct {
	kind   listing.Kind
	key    string
	cursor string
	limit  int
}

// fakeSource serves total synthetic videos per key, newest first, using the
// numeric offset as the continuation cursor.
type fakeSource struct {
	mu    sync.Mutex
	total int
	calls []fetchCall
	fail  error
	delay time.Duration
}

func (f *fakeSource) FetchPage(ctx context.Context, kind listing.Kind, key, cursor string, limit int) (listing.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{kind: kind, key: key, cursor: cursor, limit: limit})
	fail := f.fail
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if fail != nil {
		return listing.Page{}, fail
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return listing.Page{}, fmt.Errorf("bad cursor %q", cursor)
		}
		offset = n
	}
	end := min(offset+limit, f.total)
	page := listing.Page{}
	for i := offset; i < end; i++ {
		page.Items = append(page.Items, listing.Video{
			ID:    fmt.Sprintf("%s-%s-%d", kind, key, i),
			Title: fmt.Sprintf("Video %d", i),
		})
	}
	if end < f.total {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSource) lastCall() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newCache(t *testing.T, src listing.Fetcher, opts ...listing.Option) *listing.Cache {
	t.Helper()
	cache, err := listing.NewCache(src, opts...)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return cache
}

func TestEnsureServesCachedPrefixWithoutFetching(t *testing.T) {
	src := &fakeSource{total: 500}
	cache := newCache(t, src)
	ctx := context.Background()

	full, err := cache.Ensure(ctx, listing.KindChannel, "hai", 100)
	if err != nil {
		t.Fatalf("ensure 100: %v", err)
	}
	if len(full) != 100 {
		t.Fatalf("expected 100 items, got %d", len(full))
	}
	calls := src.callCount()

	for _, n := range []int{1, 50, 100} {
		got, err := cache.Ensure(ctx, listing.KindChannel, "hai", n)
		if err != nil {
			t.Fatalf("ensure %d: %v", n, err)
		}
		if len(got) != n {
			t.Fatalf("expected %d items, got %d", n, len(got))
		}
		for i := range got {
			if got[i] != full[i] {
				t.Fatalf("item %d differs from earlier result: %+v vs %+v", i, got[i], full[i])
			}
		}
	}
	if src.callCount() != calls {
		t.Fatalf("expected no further fetches, got %d extra", src.callCount()-calls)
	}
}

func TestEnsureFetchesOnlyTheRemainder(t *testing.T) {
	src := &fakeSource{total: 500}
	cache := newCache(t, src)
	ctx := context.Background()

	if _, err := cache.Ensure(ctx, listing.KindChannel, "hai", 50); err != nil {
		t.Fatalf("ensure 50: %v", err)
	}
	if src.callCount() != 1 {
		t.Fatalf("expected 1 fetch, got %d", src.callCount())
	}

	items, err := cache.Ensure(ctx, listing.KindChannel, "hai", 100)
	if err != nil {
		t.Fatalf("ensure 100: %v", err)
	}
	if src.callCount() != 2 {
		t.Fatalf("expected exactly one additional fetch, got %d total", src.callCount())
	}
	last := src.lastCall()
	if last.cursor != "50" || last.limit != 50 {
		t.Fatalf("expected follow-up for items 51-100, got cursor=%q limit=%d", last.cursor, last.limit)
	}
	if items[50].Title != "Video 50" || items[99].Title != "Video 99" {
		t.Fatalf("unexpected appended items: %q .. %q", items[50].Title, items[99].Title)
	}
}

func TestEnsureMarksShortSourceExhausted(t *testing.T) {
	src := &fakeSource{total: 30}
	cache := newCache(t, src)
	ctx := context.Background()

	items, err := cache.Ensure(ctx, listing.KindChannel, "tiny", 50)
	if err != nil {
		t.Fatalf("ensure 50: %v", err)
	}
	if len(items) != 30 {
		t.Fatalf("expected 30 items, got %d", len(items))
	}

	items, err = cache.Ensure(ctx, listing.KindChannel, "tiny", 200)
	if err != nil {
		t.Fatalf("ensure 200: %v", err)
	}
	if len(items) != 30 {
		t.Fatalf("expected 30 items from exhausted entry, got %d", len(items))
	}
	if src.callCount() != 1 {
		t.Fatalf("expected no fetch for exhausted entry, got %d calls", src.callCount())
	}
}

func TestEnsureDroppedRowsDoNotExhaustEntry(t *testing.T) {
	var calls []string
	src := listing.FetcherFunc(func(ctx context.Context, kind listing.Kind, key, cursor string, limit int) (listing.Page, error) {
		calls = append(calls, cursor)
		switch cursor {
		case "":
			// Five rows upstream, one of them unusable.
			page := listing.Page{Received: limit, NextCursor: "p2"}
			for i := 0; i < limit-1; i++ {
				page.Items = append(page.Items, listing.Video{ID: fmt.Sprintf("v%d", i), Title: "Video"})
			}
			return page, nil
		default:
			return listing.Page{Items: []listing.Video{{ID: "v-last", Title: "Video"}}, NextCursor: "p3"}, nil
		}
	})
	cache := newCache(t, src)

	items, err := cache.Ensure(context.Background(), listing.KindChannel, "gappy", 5)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(items) != 5 || items[4].ID != "v-last" {
		t.Fatalf("expected 5 items ending in v-last, got %+v", items)
	}
	if len(calls) != 2 || calls[1] != "p2" {
		t.Fatalf("expected a follow-up fetch at p2, got %v", calls)
	}
	if entries := cache.Entries(); len(entries) != 1 || entries[0].Exhausted {
		t.Fatalf("entry should not be exhausted: %+v", entries)
	}
}

func TestEnsureEmptySourceIsExhaustedAfterFirstFetch(t *testing.T) {
	src := &fakeSource{total: 0}
	cache := newCache(t, src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		items, err := cache.Ensure(ctx, listing.KindSearch, "nothing", 50)
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if len(items) != 0 {
			t.Fatalf("expected empty listing, got %d", len(items))
		}
	}
	if src.callCount() != 1 {
		t.Fatalf("expected a single fetch, got %d", src.callCount())
	}
}

func TestEnsureZeroDesiredMakesNoRequest(t *testing.T) {
	src := &fakeSource{total: 10}
	cache := newCache(t, src)

	items, err := cache.Ensure(context.Background(), listing.KindChannel, "hai", 0)
	if err != nil {
		t.Fatalf("ensure 0: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
	if src.callCount() != 0 {
		t.Fatalf("expected no fetch, got %d", src.callCount())
	}
}

func TestEnsureRejectsBlankKey(t *testing.T) {
	cache := newCache(t, &fakeSource{})
	if _, err := cache.Ensure(context.Background(), listing.KindChannel, "  ", 10); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNamespacesDoNotCollide(t *testing.T) {
	src := &fakeSource{total: 20}
	cache := newCache(t, src)
	ctx := context.Background()

	channel, err := cache.Ensure(ctx, listing.KindChannel, "test", 5)
	if err != nil {
		t.Fatalf("ensure channel: %v", err)
	}
	search, err := cache.Ensure(ctx, listing.KindSearch, "test", 5)
	if err != nil {
		t.Fatalf("ensure search: %v", err)
	}
	if src.callCount() != 2 {
		t.Fatalf("expected separate fetches per namespace, got %d", src.callCount())
	}
	if channel[0].ID == search[0].ID {
		t.Fatalf("expected distinct entries, both returned %q", channel[0].ID)
	}
}

func TestEnsureSplitsRequestsAtMaxPageSize(t *testing.T) {
	src := &fakeSource{total: 500}
	cache := newCache(t, src, listing.WithMaxPageSize(40))

	items, err := cache.Ensure(context.Background(), listing.KindChannel, "hai", 100)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(items) != 100 {
		t.Fatalf("expected 100 items, got %d", len(items))
	}
	if src.callCount() != 3 {
		t.Fatalf("expected 40+40+20 fetches, got %d", src.callCount())
	}
	if last := src.lastCall(); last.limit != 20 || last.cursor != "80" {
		t.Fatalf("unexpected final request %+v", last)
	}
}

func TestEnsureKeepsCommittedPagesOnFailure(t *testing.T) {
	src := &fakeSource{total: 500}
	cache := newCache(t, src)
	ctx := context.Background()

	if _, err := cache.Ensure(ctx, listing.KindChannel, "hai", 50); err != nil {
		t.Fatalf("ensure 50: %v", err)
	}

	src.mu.Lock()
	src.fail = services.Wrap(services.ErrTransport, "test", "fetch", "boom", nil)
	src.mu.Unlock()

	if _, err := cache.Ensure(ctx, listing.KindChannel, "hai", 100); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error to propagate, got %v", err)
	}

	items, err := cache.Ensure(ctx, listing.KindChannel, "hai", 50)
	if err != nil {
		t.Fatalf("cached prefix should survive failure: %v", err)
	}
	if len(items) != 50 {
		t.Fatalf("expected 50 cached items, got %d", len(items))
	}
}

func TestConcurrentEnsureCoalescesPerKey(t *testing.T) {
	src := &fakeSource{total: 500, delay: 20 * time.Millisecond}
	cache := newCache(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := cache.Ensure(context.Background(), listing.KindChannel, "hai", 50)
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			if len(items) != 50 {
				t.Errorf("expected 50 items, got %d", len(items))
			}
		}()
	}
	wg.Wait()

	if src.callCount() != 1 {
		t.Fatalf("expected one fetch for concurrent callers, got %d", src.callCount())
	}
}

func TestEnsureReturnsCopies(t *testing.T) {
	cache := newCache(t, &fakeSource{total: 5})
	ctx := context.Background()

	first, _ := cache.Ensure(ctx, listing.KindChannel, "hai", 5)
	first[0].Title = "mutated"

	second, _ := cache.Ensure(ctx, listing.KindChannel, "hai", 5)
	if second[0].Title == "mutated" {
		t.Fatal("caller mutation leaked into cache")
	}
}

func TestStatsEntriesAndPurge(t *testing.T) {
	src := &fakeSource{total: 30}
	cache := newCache(t, src)
	ctx := context.Background()

	_, _ = cache.Ensure(ctx, listing.KindChannel, "hai", 10)
	_, _ = cache.Ensure(ctx, listing.KindChannel, "hai", 5)
	_, _ = cache.Ensure(ctx, listing.KindSearch, "rockets", 50)

	stats := cache.Stats()
	if stats.Entries != 2 || stats.Items != 40 || stats.Hits != 1 || stats.Fetches != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	entries := cache.Entries()
	if len(entries) != 2 || entries[0].Kind != listing.KindChannel || !entries[1].Exhausted {
		t.Fatalf("unexpected entries %+v", entries)
	}

	if n := cache.Purge(); n != 2 {
		t.Fatalf("expected 2 purged entries, got %d", n)
	}
	_, _ = cache.Ensure(ctx, listing.KindChannel, "hai", 10)
	if src.callCount() != 3 {
		t.Fatalf("expected refetch after purge, got %d calls", src.callCount())
	}
}

func TestNewCacheRejectsNilFetcher(t *testing.T) {
	if _, err := listing.NewCache(nil); err == nil {
		t.Fatal("expected error for nil fetcher")
	}
}

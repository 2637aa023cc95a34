package testsupport

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeUpload is one item of a fake uploads playlist.
type FakeUpload struct {
	VideoID     string
	Title       string
	PublishedAt time.Time
}

// FakeYouTube serves the playlistItems and search endpoints of the Data API v3.
type FakeYouTube struct {
	Server *httptest.Server

	mu        sync.Mutex
	playlists map[string][]FakeUpload
	calls     int
	keys      []string
}

// NewFakeYouTube starts a fake server that is closed when the test ends.
func NewFakeYouTube(t testing.TB) *FakeYouTube {
	t.Helper()
	f := &FakeYouTube{playlists: make(map[string][]FakeUpload)}
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/playlistItems", f.servePlaylistItems)
	mux.HandleFunc("/youtube/v3/search", f.serveSearch)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the endpoint override handed to the API client.
func (f *FakeYouTube) BaseURL() string { return f.Server.URL + "/" }

// AddPlaylist registers count generated uploads for playlistID, newest first.
func (f *FakeYouTube) AddPlaylist(playlistID string, count int) []FakeUpload {
	uploads := make([]FakeUpload, count)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := range uploads {
		uploads[i] = FakeUpload{
			VideoID:     playlistID + "-yt" + strconv.Itoa(i),
			Title:       GeneratedTitle(i),
			PublishedAt: base.Add(-time.Duration(i) * 24 * time.Hour),
		}
	}
	f.SetPlaylist(playlistID, uploads...)
	return uploads
}

// SetPlaylist registers explicit uploads for playlistID.
func (f *FakeYouTube) SetPlaylist(playlistID string, uploads ...FakeUpload) {
	f.mu.Lock()
	f.playlists[playlistID] = uploads
	f.mu.Unlock()
}

// Calls counts requests served.
func (f *FakeYouTube) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Keys returns the API keys seen, one per request.
func (f *FakeYouTube) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func (f *FakeYouTube) record(r *http.Request) {
	f.mu.Lock()
	f.calls++
	f.keys = append(f.keys, r.URL.Query().Get("key"))
	f.mu.Unlock()
}

func (f *FakeYouTube) servePlaylistItems(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	query := r.URL.Query()
	f.mu.Lock()
	uploads, ok := f.playlists[query.Get("playlistId")]
	f.mu.Unlock()
	if !ok {
		writeYouTubeError(w, http.StatusNotFound, "playlistNotFound")
		return
	}

	size, err := strconv.Atoi(query.Get("maxResults"))
	if err != nil || size <= 0 {
		size = 5
	}
	offset := 0
	if token := query.Get("pageToken"); token != "" {
		if offset, err = strconv.Atoi(strings.TrimPrefix(token, "p")); err != nil {
			writeYouTubeError(w, http.StatusBadRequest, "invalidPageToken")
			return
		}
	}
	end := min(offset+size, len(uploads))
	items := make([]map[string]any, 0, max(end-offset, 0))
	for i := offset; i < end; i++ {
		up := uploads[i]
		items = append(items, map[string]any{
			"kind": "youtube#playlistItem",
			"snippet": map[string]any{
				"title":       up.Title,
				"publishedAt": up.PublishedAt.Format(time.RFC3339),
				"resourceId":  map[string]string{"kind": "youtube#video", "videoId": up.VideoID},
			},
		})
	}
	payload := map[string]any{"kind": "youtube#playlistItemListResponse", "items": items}
	if end < len(uploads) {
		payload["nextPageToken"] = "p" + strconv.Itoa(end)
	}
	writeFakeJSON(w, http.StatusOK, payload)
}

func (f *FakeYouTube) serveSearch(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	query := r.URL.Query()
	words := strings.Fields(strings.ToLower(query.Get("q")))
	channel := query.Get("channelId")

	f.mu.Lock()
	defer f.mu.Unlock()
	items := []map[string]any{}
	for playlistID, uploads := range f.playlists {
		if channel != "" && !strings.HasSuffix(playlistID, strings.TrimPrefix(channel, "UC")) {
			continue
		}
		for _, up := range uploads {
			title := strings.ToLower(up.Title)
			matched := len(words) > 0
			for _, word := range words {
				if !strings.Contains(title, word) {
					matched = false
					break
				}
			}
			if matched {
				items = append(items, map[string]any{
					"kind": "youtube#searchResult",
					"id":   map[string]string{"kind": "youtube#video", "videoId": up.VideoID},
					"snippet": map[string]any{
						"title":       up.Title,
						"publishedAt": up.PublishedAt.Format(time.RFC3339),
					},
				})
			}
		}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"kind": "youtube#searchListResponse", "items": items})
}

func writeYouTubeError(w http.ResponseWriter, status int, reason string) {
	writeFakeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": reason,
			"errors":  []map[string]string{{"reason": reason, "message": reason}},
		},
	})
}

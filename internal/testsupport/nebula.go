package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const fakeAuthPath = "/api/v1/authorization/"

// FakeEpisode is one video served by FakeNebula.
type FakeEpisode struct {
	Slug        string
	Title       string
	ChannelSlug string
	PublishedAt time.Time
}

// FakeNebula serves the authorization and content endpoints from memory.
// Tokens are "tok-1", "tok-2", ... in issue order.
type FakeNebula struct {
	Server *httptest.Server

	mu           sync.Mutex
	channels     map[string][]FakeEpisode
	catalogue    []FakeEpisode
	tokens       map[string]bool
	tokenCalls   int
	contentCalls int
	credentials  []string
	expireNext   int
	failNext     int
	expiryStatus int
}

// NewFakeNebula starts a fake server that is closed when the test ends.
func NewFakeNebula(t testing.TB) *FakeNebula {
	t.Helper()
	f := &FakeNebula{
		channels:     make(map[string][]FakeEpisode),
		tokens:       make(map[string]bool),
		expiryStatus: http.StatusUnauthorized,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// AuthURL is the token issuance endpoint.
func (f *FakeNebula) AuthURL() string { return f.Server.URL + fakeAuthPath }

// ContentURL is the content API root.
func (f *FakeNebula) ContentURL() string { return f.Server.URL }

// AddChannel registers count generated episodes for slug, newest first, and
// returns them.
func (f *FakeNebula) AddChannel(slug string, count int) []FakeEpisode {
	episodes := make([]FakeEpisode, count)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := range episodes {
		episodes[i] = FakeEpisode{
			Slug:        fmt.Sprintf("%s-%03d", slug, i),
			Title:       GeneratedTitle(i),
			ChannelSlug: slug,
			PublishedAt: base.Add(-time.Duration(i) * 24 * time.Hour),
		}
	}
	f.SetChannel(slug, episodes...)
	return episodes
}

// SetChannel registers explicit episodes for slug. They also join the search catalogue.
func (f *FakeNebula) SetChannel(slug string, episodes ...FakeEpisode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range episodes {
		episodes[i].ChannelSlug = slug
	}
	f.channels[slug] = episodes
	f.catalogue = append(f.catalogue, episodes...)
}

// ExpireNext makes the next n content requests report an expired signature.
func (f *FakeNebula) ExpireNext(n int) {
	f.mu.Lock()
	f.expireNext = n
	f.mu.Unlock()
}

// ExpireWithStatus sets the HTTP status used for expiry responses (401 by default).
func (f *FakeNebula) ExpireWithStatus(status int) {
	f.mu.Lock()
	f.expiryStatus = status
	f.mu.Unlock()
}

// FailNext makes the next n content requests fail with 500.
func (f *FakeNebula) FailNext(n int) {
	f.mu.Lock()
	f.failNext = n
	f.mu.Unlock()
}

// TokenCalls counts authorization requests.
func (f *FakeNebula) TokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

// ContentCalls counts content requests, including rejected ones.
func (f *FakeNebula) ContentCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contentCalls
}

// Credentials returns the Authorization headers seen on token requests.
func (f *FakeNebula) Credentials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.credentials...)
}

func (f *FakeNebula) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == fakeAuthPath {
		f.serveToken(w, r)
		return
	}

	f.mu.Lock()
	f.contentCalls++
	authorized := f.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	expire := f.expireNext > 0
	if expire {
		f.expireNext--
	}
	fail := f.failNext > 0
	if fail {
		f.failNext--
	}
	expiryStatus := f.expiryStatus
	f.mu.Unlock()

	switch {
	case !authorized:
		writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	case expire:
		writeFakeJSON(w, expiryStatus, map[string]string{"detail": "Signature has expired"})
		return
	case fail:
		writeFakeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "upstream exploded"})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "video_channels" && parts[2] == "video_episodes":
		f.mu.Lock()
		episodes, ok := f.channels[parts[1]]
		f.mu.Unlock()
		if !ok {
			writeFakeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		f.writePage(w, r, episodes)
	case len(parts) == 2 && parts[0] == "search" && parts[1] == "video_episodes":
		f.writePage(w, r, f.search(r.URL.Query().Get("text")))
	case len(parts) == 2 && parts[0] == "video_episodes":
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, ep := range f.catalogue {
			if ep.Slug == parts[1] {
				writeFakeJSON(w, http.StatusOK, fakeEpisodeJSON(ep))
				return
			}
		}
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	default:
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func (f *FakeNebula) serveToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFakeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
		return
	}
	f.mu.Lock()
	f.tokenCalls++
	f.credentials = append(f.credentials, r.Header.Get("Authorization"))
	token := "tok-" + strconv.Itoa(f.tokenCalls)
	f.tokens[token] = true
	f.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (f *FakeNebula) writePage(w http.ResponseWriter, r *http.Request, episodes []FakeEpisode) {
	query := r.URL.Query()
	size, err := strconv.Atoi(query.Get("page_size"))
	if err != nil || size <= 0 {
		size = 20
	}
	offset := 0
	if cursor := query.Get("cursor"); cursor != "" {
		if offset, err = strconv.Atoi(strings.TrimPrefix(cursor, "c")); err != nil {
			writeFakeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid cursor"})
			return
		}
	}
	end := min(offset+size, len(episodes))
	results := make([]map[string]string, 0, max(end-offset, 0))
	for i := offset; i < end; i++ {
		results = append(results, fakeEpisodeJSON(episodes[i]))
	}
	var next any
	if end < len(episodes) {
		nextQuery := r.URL.Query()
		nextQuery.Set("cursor", "c"+strconv.Itoa(end))
		next = f.Server.URL + r.URL.Path + "?" + nextQuery.Encode()
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"next": next, "previous": nil, "results": results})
}

// search returns catalogue entries containing every query word, in catalogue order.
func (f *FakeNebula) search(text string) []FakeEpisode {
	words := strings.Fields(strings.ToLower(text))
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FakeEpisode
	for _, ep := range f.catalogue {
		title := strings.ToLower(ep.Title)
		matched := len(words) > 0
		for _, word := range words {
			if !strings.Contains(title, word) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, ep)
		}
	}
	return out
}

func fakeEpisodeJSON(ep FakeEpisode) map[string]string {
	return map[string]string{
		"id":           "video_episode:" + ep.Slug,
		"slug":         ep.Slug,
		"title":        ep.Title,
		"channel_slug": ep.ChannelSlug,
		"published_at": ep.PublishedAt.Format(time.RFC3339),
	}
}

func writeFakeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

var (
	titleSubjects = []string{"Wyoming", "Lighthouses", "Submarine Cables", "Daylight Saving", "Toll Roads", "Airport Codes", "Time Zones", "Border Towns", "Canals", "Shipping Containers", "Ghost Stations", "Postal Codes"}
	titleAngles   = []string{"Why Nobody Understands", "The Hidden Economics of", "How We Accidentally Invented", "The Strange Rules of", "What Happened to", "The Surprising History of", "Who Really Owns", "The Problem with", "Inside the World of", "The Future of"}
)

// GeneratedTitle returns a deterministic, human-looking title for index i.
// Titles are unique for i < 120.
func GeneratedTitle(i int) string {
	title := titleAngles[(i/len(titleSubjects))%len(titleAngles)] + " " + titleSubjects[i%len(titleSubjects)]
	if i >= len(titleSubjects)*len(titleAngles) {
		title += " (Part " + strconv.Itoa(i/(len(titleSubjects)*len(titleAngles))+1) + ")"
	}
	return title
}

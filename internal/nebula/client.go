package nebula

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crossref/internal/listing"
	"crossref/internal/services"
)

// Episode is a single Nebula video as returned by the content API.
type Episode struct {
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	ChannelSlug  string    `json:"channel_slug"`
	ChannelTitle string    `json:"channel_title"`
	PublishedAt  time.Time `json:"published_at,omitzero"`
}

type episodePayload struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	ChannelSlug  string `json:"channel_slug"`
	ChannelTitle string `json:"channel_title"`
	PublishedAt  string `json:"published_at"`
}

type episodePage struct {
	Next    *string          `json:"next"`
	Results []episodePayload `json:"results"`
}

// Client issues typed listing calls against the Nebula content API. Every call
// goes through the Dispatcher.
type Client struct {
	dispatcher *Dispatcher
	contentURL string
}

var _ listing.Fetcher = (*Client)(nil)

// NewClient builds a Client rooted at contentURL.
func NewClient(dispatcher *Dispatcher, contentURL string) (*Client, error) {
	if dispatcher == nil {
		return nil, errors.New("nebula: dispatcher is nil")
	}
	contentURL = strings.TrimRight(strings.TrimSpace(contentURL), "/")
	if contentURL == "" {
		return nil, errors.New("nebula: content url required")
	}
	return &Client{dispatcher: dispatcher, contentURL: contentURL}, nil
}

// ChannelVideos lists a channel's episodes newest first.
func (c *Client) ChannelVideos(ctx context.Context, slug, cursor string, limit int) (listing.Page, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return listing.Page{}, services.Wrap(services.ErrInvalidInput, "nebula", "channel videos", "empty channel slug", nil)
	}
	endpoint := fmt.Sprintf("%s/video_channels/%s/video_episodes/", c.contentURL, url.PathEscape(slug))
	return c.listEpisodes(ctx, endpoint, url.Values{}, cursor, limit)
}

// SearchVideos lists episodes matching text across the whole catalogue.
func (c *Client) SearchVideos(ctx context.Context, text, cursor string, limit int) (listing.Page, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return listing.Page{}, services.Wrap(services.ErrInvalidInput, "nebula", "search videos", "empty query", nil)
	}
	params := url.Values{}
	params.Set("text", text)
	return c.listEpisodes(ctx, c.contentURL+"/search/video_episodes/", params, cursor, limit)
}

// Video fetches one episode by slug.
func (c *Client) Video(ctx context.Context, slug string) (Episode, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Episode{}, services.Wrap(services.ErrInvalidInput, "nebula", "video", "empty video slug", nil)
	}
	var payload episodePayload
	req := Request{
		Method:       http.MethodGet,
		URL:          fmt.Sprintf("%s/video_episodes/%s/", c.contentURL, url.PathEscape(slug)),
		RequiresAuth: true,
	}
	if err := c.dispatcher.DoJSON(ctx, req, &payload); err != nil {
		return Episode{}, err
	}
	return payload.episode(), nil
}

// FetchPage implements listing.Fetcher for the channel and search namespaces.
func (c *Client) FetchPage(ctx context.Context, kind listing.Kind, key, cursor string, limit int) (listing.Page, error) {
	switch kind {
	case listing.KindChannel:
		return c.ChannelVideos(ctx, key, cursor, limit)
	case listing.KindSearch:
		return c.SearchVideos(ctx, key, cursor, limit)
	default:
		return listing.Page{}, fmt.Errorf("nebula: unsupported listing kind %q", kind)
	}
}

func (c *Client) listEpisodes(ctx context.Context, endpoint string, params url.Values, cursor string, limit int) (listing.Page, error) {
	if limit <= 0 {
		return listing.Page{}, nil
	}
	params.Set("page_size", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var payload episodePage
	req := Request{
		Method:       http.MethodGet,
		URL:          endpoint,
		Query:        params,
		RequiresAuth: true,
	}
	if err := c.dispatcher.DoJSON(ctx, req, &payload); err != nil {
		return listing.Page{}, err
	}

	page := listing.Page{Items: make([]listing.Video, 0, len(payload.Results)), Received: len(payload.Results)}
	for _, result := range payload.Results {
		ep := result.episode()
		if ep.Slug == "" {
			continue
		}
		page.Items = append(page.Items, listing.Video{ID: ep.Slug, Title: ep.Title, PublishedAt: ep.PublishedAt})
	}
	if payload.Next != nil {
		page.NextCursor = cursorFromNext(*payload.Next)
	}
	return page, nil
}

func (p episodePayload) episode() Episode {
	ep := Episode{
		Slug:         strings.TrimSpace(p.Slug),
		Title:        strings.TrimSpace(p.Title),
		ChannelSlug:  strings.TrimSpace(p.ChannelSlug),
		ChannelTitle: strings.TrimSpace(p.ChannelTitle),
	}
	if ep.Slug == "" {
		ep.Slug = strings.TrimSpace(p.ID)
	}
	if p.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, p.PublishedAt); err == nil {
			ep.PublishedAt = ts.UTC()
		}
	}
	return ep
}

// cursorFromNext extracts the continuation cursor from the API's "next" URL.
func cursorFromNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}

package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"crossref/internal/listing"
	"crossref/internal/logging"
	"crossref/internal/services"
)

// MaxPageSize is the largest maxResults the Data API accepts.
const MaxPageSize = 50

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client wraps the generated Data API service.
type Client struct {
	service *ytapi.Service
	timeout time.Duration
	logger  *slog.Logger
}

var _ listing.Fetcher = (*Client)(nil)

// NewClient builds an API-key client. BaseURL overrides the API endpoint.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "new client", "api key required", nil)
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(key)}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		clientOpts = append(clientOpts, option.WithEndpoint(base))
	}
	service, err := ytapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "new client", "create service", err)
	}
	return &Client{
		service: service,
		timeout: opts.Timeout,
		logger:  logging.NewComponentLogger(logger, "youtube"),
	}, nil
}

// UploadsPlaylistID derives a channel's uploads playlist from its channel id.
func UploadsPlaylistID(channelID string) string {
	channelID = strings.TrimSpace(channelID)
	if strings.HasPrefix(channelID, "UC") {
		return "UU" + channelID[2:]
	}
	return ""
}

// PlaylistVideos lists a playlist newest first.
func (c *Client) PlaylistVideos(ctx context.Context, playlistID, cursor string, limit int) (listing.Page, error) {
	playlistID = strings.TrimSpace(playlistID)
	if playlistID == "" {
		return listing.Page{}, services.Wrap(services.ErrInvalidInput, "youtube", "playlist videos", "empty playlist id", nil)
	}
	if limit <= 0 {
		return listing.Page{}, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	call := c.service.PlaylistItems.List([]string{"snippet"}).
		PlaylistId(playlistID).
		MaxResults(int64(min(limit, MaxPageSize))).
		Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}
	start := time.Now()
	resp, err := call.Do()
	if err != nil {
		return listing.Page{}, wrapAPIError("playlist items", err)
	}

	page := listing.Page{Items: make([]listing.Video, 0, len(resp.Items)), NextCursor: resp.NextPageToken, Received: len(resp.Items)}
	for _, item := range resp.Items {
		if item == nil || item.Snippet == nil || item.Snippet.ResourceId == nil || item.Snippet.ResourceId.VideoId == "" {
			continue
		}
		page.Items = append(page.Items, listing.Video{
			ID:          item.Snippet.ResourceId.VideoId,
			Title:       strings.TrimSpace(item.Snippet.Title),
			PublishedAt: parseTime(item.Snippet.PublishedAt),
		})
	}
	logging.WithContext(ctx, c.logger).Debug("youtube playlist page fetched",
		logging.String("playlist_id", playlistID),
		logging.Int("received", len(page.Items)),
		logging.Duration("latency", time.Since(start)),
	)
	return page, nil
}

// SearchVideos runs a video search ordered by relevance.
func (c *Client) SearchVideos(ctx context.Context, query, cursor string, limit int) (listing.Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return listing.Page{}, services.Wrap(services.ErrInvalidInput, "youtube", "search", "empty query", nil)
	}
	if limit <= 0 {
		return listing.Page{}, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	call := c.service.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(min(limit, MaxPageSize))).
		Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}
	resp, err := call.Do()
	if err != nil {
		return listing.Page{}, wrapAPIError("search", err)
	}

	page := listing.Page{Items: make([]listing.Video, 0, len(resp.Items)), NextCursor: resp.NextPageToken, Received: len(resp.Items)}
	for _, item := range resp.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		video := listing.Video{ID: item.Id.VideoId}
		if item.Snippet != nil {
			video.Title = strings.TrimSpace(item.Snippet.Title)
			video.PublishedAt = parseTime(item.Snippet.PublishedAt)
		}
		page.Items = append(page.Items, video)
	}
	return page, nil
}

// FetchPage implements listing.Fetcher for the uploads and search kinds.
func (c *Client) FetchPage(ctx context.Context, kind listing.Kind, key, cursor string, limit int) (listing.Page, error) {
	switch kind {
	case listing.KindUploads:
		return c.PlaylistVideos(ctx, key, cursor, limit)
	case listing.KindSearch:
		return c.SearchVideos(ctx, key, cursor, limit)
	default:
		return listing.Page{}, fmt.Errorf("youtube: unsupported listing kind %q", kind)
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func wrapAPIError(operation string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, "youtube", operation, apiErr.Message, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrAuthFailure, "youtube", operation, apiErr.Message, err)
		}
	}
	return services.Wrap(services.ErrTransport, "youtube", operation, "", err)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

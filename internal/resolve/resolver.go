package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"crossref/internal/creators"
	"crossref/internal/listing"
	"crossref/internal/logging"
	"crossref/internal/matcher"
	"crossref/internal/services"
	"crossref/internal/youtube"
)

// Resolution kinds.
const (
	KindVideo   = "video"
	KindSearch  = "search"
	KindChannel = "channel"
)

const youtubeWatchURL = "https://www.youtube.com/watch?v="

// Resolution is the outcome of a tiered lookup. Link is browsable; VideoID is
// empty for channel resolutions.
type Resolution struct {
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	VideoID    string  `json:"video_id,omitempty"`
	Link       string  `json:"link"`
	Tier       string  `json:"tier"`
	Creator    string  `json:"creator,omitempty"`
}

// Options tunes a Resolver. Zero counts fall back to 50 and a zero
// MinConfidence accepts any match.
type Options struct {
	LinkBaseURL       string
	ChannelFetchCount int
	SearchFetchCount  int
	UploadsFetchCount int
	MinConfidence     float64
	// YouTube enables ResolveYouTube; nil disables it.
	YouTube *listing.Cache
	Logger  *slog.Logger
}

// Resolver is safe for concurrent use.
type Resolver struct {
	nebula   *listing.Cache
	youtube  *listing.Cache
	creators *creators.Registry
	linkBase string
	channelN int
	searchN  int
	uploadsN int
	minConf  float64
	logger   *slog.Logger
}

// New builds a Resolver over the Nebula listing cache and creator registry.
func New(nebula *listing.Cache, registry *creators.Registry, opts Options) (*Resolver, error) {
	if nebula == nil {
		return nil, errors.New("resolve: nebula cache is nil")
	}
	if registry == nil {
		return nil, errors.New("resolve: creator registry is nil")
	}
	linkBase := strings.TrimRight(strings.TrimSpace(opts.LinkBaseURL), "/")
	if linkBase == "" {
		linkBase = "https://nebula.tv"
	}
	return &Resolver{
		nebula:   nebula,
		youtube:  opts.YouTube,
		creators: registry,
		linkBase: linkBase,
		channelN: positiveOr(opts.ChannelFetchCount, 50),
		searchN:  positiveOr(opts.SearchFetchCount, 50),
		uploadsN: positiveOr(opts.UploadsFetchCount, 50),
		minConf:  opts.MinConfidence,
		logger:   logging.NewComponentLogger(opts.Logger, "resolve"),
	}, nil
}

// MatchOnChannel matches title against the newest fetchCount videos of a
// Nebula channel. fetchCount <= 0 uses the configured default.
func (r *Resolver) MatchOnChannel(ctx context.Context, channelKey, title string, fetchCount int) (matcher.MatchResult, error) {
	channelKey = strings.TrimSpace(channelKey)
	if channelKey == "" {
		return matcher.MatchResult{}, services.Wrap(services.ErrInvalidInput, "resolve", "match on channel", "empty channel key", nil)
	}
	if matcher.Normalize(title) == "" {
		return matcher.MatchResult{}, services.Wrap(services.ErrInvalidInput, "resolve", "match on channel", "empty title", nil)
	}
	return r.match(ctx, r.nebula, listing.KindChannel, channelKey, title, positiveOr(fetchCount, r.channelN))
}

// MatchBySearch searches Nebula for the normalized title and matches the
// results against it.
func (r *Resolver) MatchBySearch(ctx context.Context, title string, fetchCount int) (matcher.MatchResult, error) {
	query := matcher.Normalize(title)
	if query == "" {
		return matcher.MatchResult{}, services.Wrap(services.ErrInvalidInput, "resolve", "match by search", "empty title", nil)
	}
	return r.match(ctx, r.nebula, listing.KindSearch, query, title, positiveOr(fetchCount, r.searchN))
}

// Explain ranks every candidate of a Nebula listing against title.
func (r *Resolver) Explain(ctx context.Context, kind listing.Kind, key, title string, fetchCount int) ([]matcher.Ranked, error) {
	if kind == listing.KindSearch {
		key = matcher.Normalize(title)
	}
	if strings.TrimSpace(key) == "" || matcher.Normalize(title) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "resolve", "explain", "key and title required", nil)
	}
	items, err := r.nebula.Ensure(ctx, kind, key, positiveOr(fetchCount, r.channelN))
	if err != nil {
		return nil, err
	}
	return matcher.Rank(title, items), nil
}

// ResolveNebula finds the Nebula counterpart of a video from the YouTube
// channel channelID. Tiers run in order and stop at the first match at or
// above minConfidence. When no tier matches and the creator has a Nebula
// channel, a channel link is returned instead.
func (r *Resolver) ResolveNebula(ctx context.Context, channelID, title string, minConfidence float64) (Resolution, error) {
	if matcher.Normalize(title) == "" {
		return Resolution{}, services.Wrap(services.ErrInvalidInput, "resolve", "resolve nebula", "empty title", nil)
	}
	creator, err := r.creators.ByChannel(channelID)
	if err != nil {
		return Resolution{}, err
	}
	ctx = services.WithCreator(services.WithOperation(ctx, "resolve_nebula"), creator.Name)
	logger := logging.WithContext(ctx, r.logger).With(logging.String("title", title))

	var lastErr error
	slugs := creator.NebulaSlugs()
	for _, slug := range slugs {
		result, err := r.MatchOnChannel(ctx, slug, title, r.channelN)
		if err != nil {
			lastErr = r.tierFailed(logger, slug, err, lastErr)
			continue
		}
		logger.Debug("channel tier scored",
			logging.String("tier", slug),
			logging.Float64("confidence", result.Confidence),
			logging.String("video_id", result.VideoID))
		if result.Confidence >= minConfidence {
			return r.videoResolution(KindVideo, slug, creator, result), nil
		}
	}

	result, err := r.MatchBySearch(ctx, title, r.searchN)
	switch {
	case err != nil:
		lastErr = r.tierFailed(logger, "search", err, lastErr)
	case result.Confidence >= minConfidence:
		return r.videoResolution(KindSearch, "search", creator, result), nil
	default:
		logger.Debug("search tier below threshold", logging.Float64("confidence", result.Confidence))
	}

	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	if len(slugs) > 0 {
		logger.Info("no video match, falling back to channel link",
			logging.String(logging.FieldEventType, "resolve_channel_fallback"),
			logging.String("channel", slugs[0]))
		return Resolution{
			Kind:    KindChannel,
			Link:    r.linkBase + "/" + url.PathEscape(slugs[0]),
			Tier:    "channel",
			Creator: creator.Name,
		}, nil
	}
	if lastErr != nil {
		return Resolution{}, lastErr
	}
	return Resolution{}, services.Wrap(services.ErrNotFound, "resolve", "resolve nebula", fmt.Sprintf("no nebula video for %q", title), nil)
}

// ResolveYouTube finds the YouTube upload matching a Nebula video title. The
// creator is looked up by name, normalized name or Nebula slug. The creator's
// uploads playlist is tried first, then a YouTube search for the normalized
// title.
func (r *Resolver) ResolveYouTube(ctx context.Context, creatorName, nebulaSlug, title string) (Resolution, error) {
	query := matcher.Normalize(title)
	if query == "" {
		return Resolution{}, services.Wrap(services.ErrInvalidInput, "resolve", "resolve youtube", "empty title", nil)
	}
	if r.youtube == nil {
		return Resolution{}, services.Wrap(services.ErrConfiguration, "resolve", "resolve youtube", "youtube lookups are disabled", nil)
	}
	creator, err := r.creators.Lookup(creatorName, nebulaSlug)
	if err != nil {
		return Resolution{}, err
	}
	ctx = services.WithCreator(services.WithOperation(ctx, "resolve_youtube"), creator.Name)
	logger := logging.WithContext(ctx, r.logger).With(logging.String("title", title))

	var lastErr error
	best := matcher.MatchResult{}
	playlist := creator.Uploads
	if playlist == "" {
		playlist = youtube.UploadsPlaylistID(creator.Channel)
	}
	if playlist != "" {
		result, err := r.match(ctx, r.youtube, listing.KindUploads, playlist, title, r.uploadsN)
		switch {
		case err != nil:
			lastErr = r.tierFailed(logger, "uploads", err, lastErr)
		case result.Confidence >= r.minConf:
			return youtubeResolution("uploads", creator, result), nil
		default:
			best = result
			logger.Debug("uploads tier below threshold", logging.Float64("confidence", result.Confidence))
		}
	}

	result, err := r.match(ctx, r.youtube, listing.KindSearch, query, title, r.searchN)
	switch {
	case err != nil:
		lastErr = r.tierFailed(logger, "search", err, lastErr)
	case result.Confidence >= r.minConf:
		return youtubeResolution("search", creator, result), nil
	case result.Confidence > best.Confidence:
		best = result
	}

	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	if lastErr != nil && !errors.Is(lastErr, services.ErrNotFound) {
		return Resolution{}, lastErr
	}
	if best.VideoID != "" {
		return Resolution{}, services.Wrap(services.ErrNotFound, "resolve", "resolve youtube",
			fmt.Sprintf("best upload %s scored %.2f, below %.2f", best.VideoID, best.Confidence, r.minConf), nil)
	}
	return Resolution{}, services.Wrap(services.ErrNotFound, "resolve", "resolve youtube", fmt.Sprintf("no youtube video for %q", title), lastErr)
}

func youtubeResolution(tier string, creator creators.Creator, result matcher.MatchResult) Resolution {
	return Resolution{
		Kind:       KindVideo,
		Confidence: result.Confidence,
		VideoID:    result.VideoID,
		Link:       youtubeWatchURL + url.QueryEscape(result.VideoID),
		Tier:       tier,
		Creator:    creator.Name,
	}
}

func (r *Resolver) match(ctx context.Context, cache *listing.Cache, kind listing.Kind, key, title string, count int) (matcher.MatchResult, error) {
	items, err := cache.Ensure(ctx, kind, key, count)
	if err != nil {
		return matcher.MatchResult{}, err
	}
	result, ok := matcher.BestMatch(title, items)
	if !ok {
		return matcher.MatchResult{}, services.Wrap(services.ErrNotFound, "resolve", string(kind), fmt.Sprintf("no videos for %q", key), nil)
	}
	return result, nil
}

// tierFailed logs a failed tier and returns the error to surface if nothing
// else is found. Not-found tiers never replace a real failure.
func (r *Resolver) tierFailed(logger *slog.Logger, tier string, err, lastErr error) error {
	if errors.Is(err, services.ErrNotFound) {
		logger.Debug("tier has no data", logging.String("tier", tier))
		if lastErr == nil {
			return err
		}
		return lastErr
	}
	logging.WarnWithContext(logger, "resolution tier failed", "resolve_tier_failed",
		logging.String("tier", tier),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check upstream connectivity and credentials"),
		logging.String(logging.FieldImpact, "continuing with the next tier"),
	)
	return err
}

func (r *Resolver) videoResolution(kind, tier string, creator creators.Creator, result matcher.MatchResult) Resolution {
	return Resolution{
		Kind:       kind,
		Confidence: result.Confidence,
		VideoID:    result.VideoID,
		Link:       r.linkBase + "/videos/" + url.PathEscape(result.VideoID),
		Tier:       tier,
		Creator:    creator.Name,
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

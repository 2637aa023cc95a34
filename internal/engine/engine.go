package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"crossref/internal/config"
	"crossref/internal/creators"
	"crossref/internal/credentials"
	"crossref/internal/listing"
	"crossref/internal/logging"
	"crossref/internal/nebula"
	"crossref/internal/resolve"
	"crossref/internal/session"
	"crossref/internal/youtube"
)

// Engine bundles the long-lived components built from one Config.
type Engine struct {
	Config         *config.Config
	Logger         *slog.Logger
	Session        *session.Store
	Nebula         *nebula.Client
	NebulaCache    *listing.Cache
	YouTubeCache   *listing.Cache
	Creators       *creators.Registry
	Resolver       *resolve.Resolver
	CredentialFile *credentials.FileSource
}

// Status is a point-in-time summary for the status endpoint and CLI.
type Status struct {
	Session session.Status      `json:"session"`
	Nebula  listing.Stats       `json:"nebula_cache"`
	YouTube *listing.Stats      `json:"youtube_cache,omitempty"`
	Entries []listing.EntryInfo `json:"entries,omitempty"`
}

// New builds an Engine. logger may be nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.Nebula.RequestTimeout) * time.Second}
	transport := nebula.NewTransport(httpClient, nebula.NewLimiter(cfg.Nebula.RequestsPerSecond, cfg.Nebula.Burst))

	authorizer, err := nebula.NewAuthorizer(transport, cfg.Nebula.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("nebula authorizer: %w", err)
	}
	credentialFile := credentials.NewFileSource(cfg.Nebula.CredentialFile)
	store, err := session.New(authorizer,
		session.WithCredentialSource(credentials.Chain{credentials.Static(cfg.Nebula.Credential), credentialFile}),
		session.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	dispatcher, err := nebula.NewDispatcher(transport, store, logger)
	if err != nil {
		return nil, fmt.Errorf("nebula dispatcher: %w", err)
	}
	client, err := nebula.NewClient(dispatcher, cfg.Nebula.ContentURL)
	if err != nil {
		return nil, fmt.Errorf("nebula client: %w", err)
	}
	nebulaCache, err := listing.NewCache(client,
		listing.WithMaxPageSize(cfg.Nebula.MaxPageSize),
		listing.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("nebula listing cache: %w", err)
	}

	var youtubeCache *listing.Cache
	if cfg.YouTube.Enabled {
		yt, err := youtube.NewClient(ctx, youtube.Options{
			APIKey:  cfg.YouTube.APIKey,
			BaseURL: cfg.YouTube.BaseURL,
			Timeout: time.Duration(cfg.YouTube.RequestTimeout) * time.Second,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("youtube client: %w", err)
		}
		youtubeCache, err = listing.NewCache(yt,
			listing.WithMaxPageSize(youtube.MaxPageSize),
			listing.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("youtube listing cache: %w", err)
		}
	}

	registry := creators.NewRegistry(cfg.Creators.Path, logger)
	resolver, err := resolve.New(nebulaCache, registry, resolve.Options{
		LinkBaseURL:       cfg.Nebula.LinkBaseURL,
		ChannelFetchCount: cfg.Resolution.ChannelFetchCount,
		SearchFetchCount:  cfg.Resolution.SearchFetchCount,
		UploadsFetchCount: cfg.Resolution.UploadsFetchCount,
		MinConfidence:     cfg.Resolution.MinConfidence,
		YouTube:           youtubeCache,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	logger.Debug("engine ready",
		logging.String("content_url", cfg.Nebula.ContentURL),
		logging.Bool("youtube_enabled", youtubeCache != nil),
		logging.Float64("requests_per_second", cfg.Nebula.RequestsPerSecond),
	)

	return &Engine{
		Config:         cfg,
		Logger:         logger,
		Session:        store,
		Nebula:         client,
		NebulaCache:    nebulaCache,
		YouTubeCache:   youtubeCache,
		Creators:       registry,
		Resolver:       resolver,
		CredentialFile: credentialFile,
	}, nil
}

// Status snapshots the session and caches. withEntries includes every cached
// listing.
func (e *Engine) Status(withEntries bool) Status {
	status := Status{
		Session: e.Session.Status(),
		Nebula:  e.NebulaCache.Stats(),
	}
	if e.YouTubeCache != nil {
		stats := e.YouTubeCache.Stats()
		status.YouTube = &stats
	}
	if withEntries {
		status.Entries = e.NebulaCache.Entries()
		if e.YouTubeCache != nil {
			status.Entries = append(status.Entries, e.YouTubeCache.Entries()...)
		}
	}
	return status
}

// Purge drops every cached listing and reloads the creator registry on next
// use. It returns the number of listings dropped.
func (e *Engine) Purge() int {
	n := e.NebulaCache.Purge()
	if e.YouTubeCache != nil {
		n += e.YouTubeCache.Purge()
	}
	e.Creators.Reload()
	return n
}

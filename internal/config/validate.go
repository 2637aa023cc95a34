package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNebula(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateResolution(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNebula() error {
	for key, value := range map[string]string{
		"nebula.auth_url":      c.Nebula.AuthURL,
		"nebula.content_url":   c.Nebula.ContentURL,
		"nebula.link_base_url": c.Nebula.LinkBaseURL,
	} {
		if err := ensureURL(key, value); err != nil {
			return err
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"nebula.request_timeout": c.Nebula.RequestTimeout,
		"nebula.burst":           c.Nebula.Burst,
		"nebula.max_page_size":   c.Nebula.MaxPageSize,
	}); err != nil {
		return err
	}
	if c.Nebula.RequestsPerSecond < 0 {
		return errors.New("nebula.requests_per_second must be >= 0 (0 disables rate limiting)")
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if !c.YouTube.Enabled {
		return nil
	}
	if c.YouTube.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("youtube.api_key is required when youtube.enabled is true. Set %s env var or edit %s (create with 'crossref config init')", youtubeAPIKeyEnv, defaultPath)
	}
	if c.YouTube.BaseURL != "" {
		if err := ensureURL("youtube.base_url", c.YouTube.BaseURL); err != nil {
			return err
		}
	}
	if c.YouTube.RequestTimeout <= 0 {
		return errors.New("youtube.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateResolution() error {
	if err := ensurePositiveMap(map[string]int{
		"resolution.channel_fetch_count": c.Resolution.ChannelFetchCount,
		"resolution.search_fetch_count":  c.Resolution.SearchFetchCount,
		"resolution.uploads_fetch_count": c.Resolution.UploadsFetchCount,
		"resolution.batch_concurrency":   c.Resolution.BatchConcurrency,
	}); err != nil {
		return err
	}
	if c.Resolution.MinConfidence < 0 || c.Resolution.MinConfidence > 1 {
		return errors.New("resolution.min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensureURL(key, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

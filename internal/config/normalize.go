package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeNebula(); err != nil {
		return err
	}
	c.normalizeYouTube()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Creators.Path) == "" {
		c.Creators.Path = defaultCreatorsPath
	}
	if c.Creators.Path, err = expandPath(c.Creators.Path); err != nil {
		return fmt.Errorf("creators.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNebula() error {
	c.Nebula.AuthURL = strings.TrimSpace(c.Nebula.AuthURL)
	if c.Nebula.AuthURL == "" {
		c.Nebula.AuthURL = defaultNebulaAuthURL
	}
	c.Nebula.ContentURL = strings.TrimRight(strings.TrimSpace(c.Nebula.ContentURL), "/")
	if c.Nebula.ContentURL == "" {
		c.Nebula.ContentURL = defaultNebulaContentURL
	}
	c.Nebula.LinkBaseURL = strings.TrimRight(strings.TrimSpace(c.Nebula.LinkBaseURL), "/")
	if c.Nebula.LinkBaseURL == "" {
		c.Nebula.LinkBaseURL = defaultNebulaLinkBaseURL
	}
	c.Nebula.Credential = strings.TrimSpace(c.Nebula.Credential)
	if c.Nebula.Credential == "" {
		if value, ok := os.LookupEnv(nebulaCredentialEnv); ok {
			c.Nebula.Credential = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Nebula.CredentialFile) != "" {
		expanded, err := expandPath(c.Nebula.CredentialFile)
		if err != nil {
			return fmt.Errorf("nebula.credential_file: %w", err)
		}
		c.Nebula.CredentialFile = expanded
	}
	if c.Nebula.MaxPageSize == 0 {
		c.Nebula.MaxPageSize = defaultMaxPageSize
	}
	if c.Nebula.Burst == 0 {
		c.Nebula.Burst = defaultBurst
	}
	return nil
}

func (c *Config) normalizeYouTube() {
	c.YouTube.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	if c.YouTube.APIKey == "" {
		if value, ok := os.LookupEnv(youtubeAPIKeyEnv); ok {
			c.YouTube.APIKey = strings.TrimSpace(value)
		}
	}
	c.YouTube.BaseURL = strings.TrimSpace(c.YouTube.BaseURL)
	if c.YouTube.RequestTimeout == 0 {
		c.YouTube.RequestTimeout = defaultYouTubeTimeout
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv(apiTokenEnv); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

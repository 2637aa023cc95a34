package testsupport

import (
	"path/filepath"
	"testing"

	"crossref/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Nebula.CredentialFile = filepath.Join(base, "nebula_credential")
	cfgVal.Nebula.RequestsPerSecond = 0
	cfgVal.Creators.Path = filepath.Join(base, "creators.json")
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNebula points the Nebula endpoints at a fake server.
func WithNebula(fake *FakeNebula) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Nebula.AuthURL = fake.AuthURL()
		b.cfg.Nebula.ContentURL = fake.ContentURL()
	}
}

// WithYouTube enables reverse lookups against a fake Data API server.
func WithYouTube(fake *FakeYouTube) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.YouTube.Enabled = true
		b.cfg.YouTube.APIKey = "test-key"
		b.cfg.YouTube.BaseURL = fake.BaseURL()
	}
}

// WithCreators writes the registry file and points the config at it.
func WithCreators(entries ...map[string]string) ConfigOption {
	return func(b *configBuilder) {
		WriteJSON(b.t, b.cfg.Creators.Path, entries)
	}
}

// WithConfig applies an arbitrary mutation to the generated config.
func WithConfig(fn func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		fn(b.cfg)
	}
}

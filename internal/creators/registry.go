package creators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"crossref/internal/logging"
	"crossref/internal/matcher"
	"crossref/internal/services"
)

// Creator is one registry entry. Only Name is required.
type Creator struct {
	Name      string `json:"name"`
	Nebula    string `json:"nebula,omitempty"`
	NebulaAlt string `json:"nebulaAlt,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Uploads   string `json:"uploads,omitempty"`
}

// NebulaSlugs returns the primary slug and, when set and distinct, the
// alternate, in tier order.
func (c Creator) NebulaSlugs() []string {
	slugs := make([]string, 0, 2)
	if c.Nebula != "" {
		slugs = append(slugs, c.Nebula)
	}
	if c.NebulaAlt != "" && c.NebulaAlt != c.Nebula {
		slugs = append(slugs, c.NebulaAlt)
	}
	return slugs
}

// Registry serves creator lookups from a JSON file loaded on first use. A
// failed load is retried on the next lookup.
type Registry struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	loaded   bool
	creators []Creator
}

// NewRegistry builds a registry backed by path. An empty path yields an
// empty registry.
func NewRegistry(path string, logger *slog.Logger) *Registry {
	return &Registry{
		path:   strings.TrimSpace(path),
		logger: logging.NewComponentLogger(logger, "creators"),
	}
}

// NewStatic builds a registry over an in-memory list.
func NewStatic(list []Creator) *Registry {
	return &Registry{
		logger:   logging.NewNop(),
		loaded:   true,
		creators: sanitize(list),
	}
}

// All returns a copy of every creator.
func (r *Registry) All() ([]Creator, error) {
	creators, err := r.load()
	if err != nil {
		return nil, err
	}
	return append([]Creator(nil), creators...), nil
}

// ByChannel finds the creator owning a YouTube channel id.
func (r *Registry) ByChannel(channelID string) (Creator, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return Creator{}, services.Wrap(services.ErrInvalidInput, "creators", "by channel", "empty channel id", nil)
	}
	return r.find("by channel", channelID, func(c Creator) bool { return c.Channel == channelID })
}

// ByNebula finds the creator with a primary or alternate Nebula slug.
func (r *Registry) ByNebula(slug string) (Creator, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Creator{}, services.Wrap(services.ErrInvalidInput, "creators", "by nebula", "empty slug", nil)
	}
	return r.find("by nebula", slug, func(c Creator) bool { return c.Nebula == slug || c.NebulaAlt == slug })
}

// Lookup finds a creator by exact name, then normalized name, then Nebula
// slug. Either argument may be empty but not both.
func (r *Registry) Lookup(name, nebulaSlug string) (Creator, error) {
	name = strings.TrimSpace(name)
	nebulaSlug = strings.TrimSpace(nebulaSlug)
	if name == "" && nebulaSlug == "" {
		return Creator{}, services.Wrap(services.ErrInvalidInput, "creators", "lookup", "name or nebula slug required", nil)
	}
	creators, err := r.load()
	if err != nil {
		return Creator{}, err
	}
	if name != "" {
		for _, c := range creators {
			if c.Name == name {
				return c, nil
			}
		}
		normalized := matcher.Normalize(name)
		for _, c := range creators {
			if normalized != "" && matcher.Normalize(c.Name) == normalized {
				return c, nil
			}
		}
	}
	if nebulaSlug != "" {
		if c, err := r.ByNebula(nebulaSlug); err == nil || !errors.Is(err, services.ErrNotFound) {
			return c, err
		}
	}
	return Creator{}, services.Wrap(services.ErrNotFound, "creators", "lookup", fmt.Sprintf("no creator named %q or on %q", name, nebulaSlug), nil)
}

// Reload drops the loaded list; the next lookup reads the file again.
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.path != "" {
		r.loaded = false
		r.creators = nil
	}
}

func (r *Registry) find(operation, value string, match func(Creator) bool) (Creator, error) {
	creators, err := r.load()
	if err != nil {
		return Creator{}, err
	}
	for _, c := range creators {
		if match(c) {
			return c, nil
		}
	}
	return Creator{}, services.Wrap(services.ErrNotFound, "creators", operation, fmt.Sprintf("no creator for %q", value), nil)
}

func (r *Registry) load() ([]Creator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.creators, nil
	}
	if r.path == "" {
		r.loaded = true
		return nil, nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "creators", "load", "registry file not found: "+r.path, err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "creators", "load", "read registry", err)
	}
	var list []Creator
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "creators", "load", "parse registry "+r.path, err)
	}
	r.creators = sanitize(list)
	r.loaded = true
	if skipped := len(list) - len(r.creators); skipped > 0 {
		logging.WarnWithContext(r.logger, "registry entries without a name skipped", "creators_entries_skipped",
			logging.Int("skipped", skipped),
			logging.String(logging.FieldErrorHint, "give every entry in "+r.path+" a name"),
			logging.String(logging.FieldImpact, "skipped creators cannot be resolved"),
		)
	}
	r.logger.Debug("creator registry loaded",
		logging.Int("creator_count", len(r.creators)),
		logging.String("path", r.path))
	return r.creators, nil
}

func sanitize(list []Creator) []Creator {
	out := make([]Creator, 0, len(list))
	for _, c := range list {
		c.Name = strings.TrimSpace(c.Name)
		c.Nebula = strings.TrimSpace(c.Nebula)
		c.NebulaAlt = strings.TrimSpace(c.NebulaAlt)
		c.Channel = strings.TrimSpace(c.Channel)
		c.Uploads = strings.TrimSpace(c.Uploads)
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

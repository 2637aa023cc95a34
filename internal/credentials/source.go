package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source yields the locally stored Nebula credential blob. ok is false when no
// credential is configured, which callers treat as "request an anonymous token".
type Source interface {
	Load() (blob string, ok bool, err error)
}

// Static serves a fixed credential, typically from config or NEBULA_API_TOKEN.
type Static string

// Load returns the trimmed value when non-empty.
func (s Static) Load() (string, bool, error) {
	blob := strings.TrimSpace(string(s))
	return blob, blob != "", nil
}

// FileSource reads the credential blob from a file on disk.
type FileSource struct {
	path string
}

// NewFileSource builds a FileSource rooted at the provided path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path reports the backing file.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads the blob from disk. A missing or empty file resolves to no credential.
func (s *FileSource) Load() (string, bool, error) {
	if s == nil || strings.TrimSpace(s.path) == "" {
		return "", false, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read nebula credential: %w", err)
	}
	blob := strings.TrimSpace(string(data))
	return blob, blob != "", nil
}

// Save persists the blob with owner-only permissions. An empty blob removes the file.
func (s *FileSource) Save(blob string) error {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove nebula credential: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure credential directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(blob+"\n"), 0o600); err != nil {
		return fmt.Errorf("write nebula credential: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace nebula credential: %w", err)
	}
	return nil
}

// Chain consults each source in order and returns the first credential found.
// Errors stop the walk so a corrupt file is not silently skipped.
type Chain []Source

// Load implements Source.
func (c Chain) Load() (string, bool, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		blob, ok, err := src.Load()
		if err != nil {
			return "", false, err
		}
		if ok {
			return blob, true, nil
		}
	}
	return "", false, nil
}

package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSourceLoadMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing"))

	blob, ok, err := src.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok || blob != "" {
		t.Fatalf("expected no credential, got %q ok=%v", blob, ok)
	}
}

func TestFileSourceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credential")
	src := NewFileSource(path)

	if err := src.Save("  opaque-blob  "); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", perm)
	}

	blob, ok, err := src.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok || blob != "opaque-blob" {
		t.Fatalf("unexpected credential %q ok=%v", blob, ok)
	}

	if err := src.Save(""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := src.Load(); ok {
		t.Fatal("expected credential to be cleared")
	}
}

type failingSource struct{}

func (failingSource) Load() (string, bool, error) { return "", false, errors.New("boom") }

func TestChainOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential")
	file := NewFileSource(path)
	if err := file.Save("from-file"); err != nil {
		t.Fatalf("save: %v", err)
	}

	blob, ok, err := Chain{Static(""), file}.Load()
	if err != nil || !ok || blob != "from-file" {
		t.Fatalf("expected file credential, got %q ok=%v err=%v", blob, ok, err)
	}

	blob, ok, err = Chain{Static("from-config"), file}.Load()
	if err != nil || !ok || blob != "from-config" {
		t.Fatalf("expected static credential first, got %q ok=%v err=%v", blob, ok, err)
	}

	if _, _, err := (Chain{Static(""), failingSource{}, file}).Load(); err == nil {
		t.Fatal("expected error from failing source to stop the chain")
	}

	if _, ok, err := (Chain{nil, Static(" ")}).Load(); ok || err != nil {
		t.Fatalf("expected empty chain result, got ok=%v err=%v", ok, err)
	}
}

package feedcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	dbPath := filepath.Join(tmpDir, "feedcache.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected feedcache.db to be created")
	}
}

func TestGet_Miss(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, ok, err := s.Get("https://example.com/feed")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected a miss for an unseen feed url")
	}
}

func TestSetThenGet(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	feedURL := "https://example.com/feed"
	if err := s.Set(feedURL, `"abc123"`, "Wed, 21 Oct 2026 07:28:00 GMT"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, ok, err := s.Get(feedURL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Set")
	}
	if v.ETag != `"abc123"` {
		t.Errorf("ETag = %q, want %q", v.ETag, `"abc123"`)
	}
	if v.LastModified != "Wed, 21 Oct 2026 07:28:00 GMT" {
		t.Errorf("LastModified = %q", v.LastModified)
	}
}

func TestSet_Overwrites(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	feedURL := "https://example.com/feed"
	if err := s.Set(feedURL, "etag-1", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(feedURL, "etag-2", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, ok, err := s.Get(feedURL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if v.ETag != "etag-2" {
		t.Errorf("ETag = %q, want the overwritten value", v.ETag)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Set("https://example.com/stale", "etag", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	n, err := s.CleanupOlderThan(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CleanupOlderThan failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CleanupOlderThan removed %d rows, want 1", n)
	}

	_, ok, err := s.Get("https://example.com/stale")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected the entry to be gone after cleanup")
	}
}

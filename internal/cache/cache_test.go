package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"duplifind/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "cache.db")
	s, err := Open(nested)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(nested); err != nil {
		t.Errorf("expected db file to exist: %v", err)
	}
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	s := openTestStore(t)
	key := models.CacheKey{Path: "/a/b.jpg", ModTime: time.Unix(1000, 0), SizeBytes: 123}

	calls := 0
	compute := func() (*models.ImageRecord, *models.ErrorRecord) {
		calls++
		r := &models.ImageRecord{Path: key.Path, SizeBytes: key.SizeBytes, ModTime: key.ModTime, Format: models.FormatJPEG, HasPerceptualHash: true, PerceptualHash: 0xDEAD}
		r.ContentHash[0] = 0xAB
		return r, nil
	}

	rec1, _, hit1 := s.GetOrCompute(context.Background(), key, compute)
	if hit1 {
		t.Error("expected first call to be a miss")
	}
	if rec1 == nil || rec1.PerceptualHash != 0xDEAD {
		t.Fatalf("unexpected record from compute: %+v", rec1)
	}

	rec2, _, hit2 := s.GetOrCompute(context.Background(), key, compute)
	if !hit2 {
		t.Error("expected second call to be a hit")
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if rec2.PerceptualHash != 0xDEAD || rec2.ContentHash[0] != 0xAB {
		t.Errorf("cached record mismatch: %+v", rec2)
	}
}

func TestGetOrCompute_RoundTripsHasEXIF(t *testing.T) {
	s := openTestStore(t)
	key := models.CacheKey{Path: "/a/exif.jpg", ModTime: time.Unix(1000, 0), SizeBytes: 123}

	compute := func() (*models.ImageRecord, *models.ErrorRecord) {
		return &models.ImageRecord{Path: key.Path, SizeBytes: key.SizeBytes, ModTime: key.ModTime, HasEXIF: true}, nil
	}
	s.GetOrCompute(context.Background(), key, compute)

	rec, _, hit := s.GetOrCompute(context.Background(), key, compute)
	if !hit {
		t.Fatal("expected a cache hit on the second call")
	}
	if !rec.HasEXIF {
		t.Error("expected HasEXIF to round-trip through the cache as true")
	}
}

func TestGetOrCompute_InvalidatesOnSizeChange(t *testing.T) {
	s := openTestStore(t)
	path := "/a/b.jpg"
	mtime := time.Unix(1000, 0)

	key1 := models.CacheKey{Path: path, ModTime: mtime, SizeBytes: 100}
	calls := 0
	compute := func() (*models.ImageRecord, *models.ErrorRecord) {
		calls++
		r := &models.ImageRecord{Path: path, ModTime: mtime}
		return r, nil
	}
	s.GetOrCompute(context.Background(), key1, compute)

	key2 := models.CacheKey{Path: path, ModTime: mtime, SizeBytes: 200}
	_, _, hit := s.GetOrCompute(context.Background(), key2, compute)
	if hit {
		t.Error("expected a size change to invalidate the cache entry")
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	key := models.CacheKey{Path: "/a.jpg", ModTime: time.Unix(1, 0), SizeBytes: 1}
	s.GetOrCompute(context.Background(), key, func() (*models.ImageRecord, *models.ErrorRecord) {
		return &models.ImageRecord{Path: key.Path}, nil
	})

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	stats, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEntries != 0 {
		t.Errorf("TotalEntries = %d, want 0", stats.TotalEntries)
	}
}

func TestCleanupMissing(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()
	existing := filepath.Join(dir, "exists.jpg")
	os.WriteFile(existing, []byte("x"), 0o644)
	missing := filepath.Join(dir, "gone.jpg")

	for _, p := range []string{existing, missing} {
		key := models.CacheKey{Path: p, ModTime: time.Unix(1, 0), SizeBytes: 1}
		s.GetOrCompute(context.Background(), key, func() (*models.ImageRecord, *models.ErrorRecord) {
			return &models.ImageRecord{Path: p}, nil
		})
	}

	n, err := s.CleanupMissing()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CleanupMissing() removed %d, want 1", n)
	}
}

func TestCleanupStale(t *testing.T) {
	s := openTestStore(t)
	key := models.CacheKey{Path: "/a.jpg", ModTime: time.Unix(1, 0), SizeBytes: 1}
	s.GetOrCompute(context.Background(), key, func() (*models.ImageRecord, *models.ErrorRecord) {
		return &models.ImageRecord{Path: key.Path}, nil
	})

	n, err := s.CleanupStale(0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CleanupStale(0) removed %d, want 1", n)
	}
}

func TestReopen_PreservesSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	key := models.CacheKey{Path: "/a.jpg", ModTime: time.Unix(1, 0), SizeBytes: 1}
	s1.GetOrCompute(context.Background(), key, func() (*models.ImageRecord, *models.ErrorRecord) {
		return &models.ImageRecord{Path: key.Path}, nil
	})
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	// A matching stored schema version must not trigger a drop-and-rebuild.
	stats, err := s2.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEntries != 1 {
		t.Errorf("TotalEntries after reopen = %d, want 1", stats.TotalEntries)
	}
}

// Package cache implements the analysis cache (C3): a persistent
// key→record store keyed on file identity, with identity-based
// invalidation.
//
// Backed by modernc.org/sqlite (pure Go, no cgo). Connection setup
// (WAL, busy_timeout, synchronous=NORMAL) follows the pragma set a
// production sqlite-backed Go service typically applies; the
// get-or-compute/cleanup/stats operation set and the cache-key/
// last-accessed shape follow a reference cache implementation's design.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"duplifind/internal/models"
)

const schemaVersion = 2

// DefaultPath returns the default cache location,
// ~/.duplicate_finder_cache.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".duplicate_finder_cache.db"), nil
}

// Store is the analysis cache. Multiple workers may call GetOrCompute
// concurrently; every statement, including lookups (which also bump
// last_access_at), is serialized by mu. WAL mode lets other
// connections read while a write is in progress.
type Store struct {
	dbPath string
	db     *sql.DB
	mu     sync.Mutex

	degradedWarned bool
}

// Open opens (creating if necessary) the cache database at dbPath. A
// schema-version mismatch drops and rebuilds image_cache rather than
// running an incremental migration list: a version mismatch means
// "start over", not "upgrade in place".
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: set pragma %q: %w", pragma, err)
		}
	}

	s := &Store{dbPath: dbPath, db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("cache: create meta table: %w", err)
	}

	var storedVersion int
	row := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`)
	var raw string
	err := row.Scan(&raw)
	if err == nil {
		fmt.Sscanf(raw, "%d", &storedVersion)
	}

	if err == sql.ErrNoRows || storedVersion != schemaVersion {
		if err := s.rebuildSchema(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) rebuildSchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin rebuild: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS image_cache`,
		`CREATE TABLE image_cache (
			path TEXT PRIMARY KEY,
			size_bytes INT NOT NULL,
			mtime INT NOT NULL,
			content_hash BLOB NOT NULL,
			phash BLOB,
			width INT NOT NULL DEFAULT 0,
			height INT NOT NULL DEFAULT 0,
			bit_depth INT NOT NULL DEFAULT 0,
			format_tag TEXT NOT NULL DEFAULT '',
			has_exif INT NOT NULL DEFAULT 0,
			analyzed_at INT NOT NULL,
			last_access_at INT NOT NULL
		)`,
		`CREATE INDEX idx_image_cache_last_access ON image_cache(last_access_at)`,
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
	}
	for i, stmt := range stmts {
		var err error
		if i == len(stmts)-1 {
			_, err = tx.Exec(stmt, fmt.Sprintf("%d", schemaVersion))
		} else {
			_, err = tx.Exec(stmt)
		}
		if err != nil {
			return fmt.Errorf("cache: rebuild schema: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ComputeFunc produces a fresh record for a cache miss.
type ComputeFunc func() (*models.ImageRecord, *models.ErrorRecord)

// GetOrCompute is the cache's one read/write-combined operation. If an
// entry with a matching CacheKey (path, mtime, size_bytes) exists, its
// last_access_at is refreshed and its record is returned. Otherwise
// compute is invoked, the result upserted under the new key, and
// returned. On any storage error, the cache degrades to a bypass: the
// computed result is returned without being cached.
func (s *Store) GetOrCompute(ctx context.Context, key models.CacheKey, compute ComputeFunc) (*models.ImageRecord, *models.ErrorRecord, bool) {
	if rec, hit := s.lookup(key); hit {
		return rec, nil, true
	}

	rec, errRec := compute()
	if rec != nil {
		if err := s.put(key, rec); err != nil {
			s.warnDegraded(err)
		}
	}
	return rec, errRec, false
}

func (s *Store) lookup(key models.CacheKey) (*models.ImageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT size_bytes, mtime, content_hash, phash, width, height, bit_depth, format_tag, has_exif, analyzed_at
		FROM image_cache WHERE path = ? AND mtime = ? AND size_bytes = ?`,
		key.Path, key.ModTime.UnixNano(), key.SizeBytes)

	var rec models.ImageRecord
	var contentHash []byte
	var phash sql.NullInt64
	var analyzedAtNanos int64
	var format string
	var hasEXIF bool

	err := row.Scan(&rec.SizeBytes, new(int64), &contentHash, &phash, &rec.Width, &rec.Height, &rec.BitDepth, &format, &hasEXIF, &analyzedAtNanos)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Debug().Err(err).Str("path", key.Path).Msg("cache: lookup failed, treating as miss")
		}
		return nil, false
	}

	rec.Path = key.Path
	rec.ModTime = key.ModTime
	copy(rec.ContentHash[:], contentHash)
	rec.Format = models.FormatTag(format)
	rec.HasEXIF = hasEXIF
	rec.AnalyzedAt = time.Unix(0, analyzedAtNanos)
	if phash.Valid {
		rec.HasPerceptualHash = true
		rec.PerceptualHash = uint64(phash.Int64)
	}

	now := time.Now()
	if _, err := s.db.Exec(`UPDATE image_cache SET last_access_at = ? WHERE path = ?`, now.UnixNano(), key.Path); err != nil {
		log.Debug().Err(err).Str("path", key.Path).Msg("cache: failed to bump last_access_at")
	}

	return &rec, true
}

func (s *Store) put(key models.CacheKey, rec *models.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var phash any
	if rec.HasPerceptualHash {
		phash = int64(rec.PerceptualHash)
	}

	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO image_cache (path, size_bytes, mtime, content_hash, phash, width, height, bit_depth, format_tag, has_exif, analyzed_at, last_access_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			mtime = excluded.mtime,
			content_hash = excluded.content_hash,
			phash = excluded.phash,
			width = excluded.width,
			height = excluded.height,
			bit_depth = excluded.bit_depth,
			format_tag = excluded.format_tag,
			has_exif = excluded.has_exif,
			analyzed_at = excluded.analyzed_at,
			last_access_at = excluded.last_access_at`,
		key.Path, key.SizeBytes, key.ModTime.UnixNano(), rec.ContentHash[:], phash,
		rec.Width, rec.Height, rec.BitDepth, string(rec.Format), rec.HasEXIF, now.UnixNano(), now.UnixNano())
	return err
}

func (s *Store) warnDegraded(err error) {
	if s.degradedWarned {
		return
	}
	s.degradedWarned = true
	log.Warn().Err(err).Str("db", s.dbPath).Msg("cache: storage error, degrading to bypass for this scan")
}

// Degraded reports whether this Store has hit a storage error and
// fallen back to bypass mode during its lifetime.
func (s *Store) Degraded() bool {
	return s.degradedWarned
}

// Stats reports the cache's current size on disk and entry count.
type Stats struct {
	TotalEntries int
	BytesOnDisk  int64
	Path         string
}

func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM image_cache`).Scan(&total); err != nil {
		return Stats{}, fmt.Errorf("cache: stats: %w", err)
	}

	info, err := os.Stat(s.dbPath)
	var size int64
	if err == nil {
		size = info.Size()
	}

	return Stats{TotalEntries: total, BytesOnDisk: size, Path: s.dbPath}, nil
}

// Clear drops all entries.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM image_cache`)
	return err
}

// CleanupMissing removes entries whose path no longer exists on disk,
// returning the count removed.
func (s *Store) CleanupMissing() (int, error) {
	s.mu.Lock()
	paths, err := s.allPaths()
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`DELETE FROM image_cache WHERE path = ?`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, p := range missing {
		if _, err := stmt.Exec(p); err != nil {
			return 0, err
		}
	}
	return len(missing), tx.Commit()
}

func (s *Store) allPaths() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM image_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// CleanupStale removes entries whose last_access_at predates the
// maxAgeDays cutoff, vacuuming the database afterward, and returns the
// count removed.
func (s *Store) CleanupStale(maxAgeDays int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour).UnixNano()

	s.mu.Lock()
	res, err := s.db.Exec(`DELETE FROM image_cache WHERE last_access_at < ?`, cutoff)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("cache: cleanup_stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if n > 0 {
		if err := s.vacuum(); err != nil {
			log.Warn().Err(err).Msg("cache: vacuum after cleanup_stale failed")
		}
	}
	return int(n), nil
}

// vacuum runs VACUUM, which SQLite requires to run outside a
// transaction — mirrors a reference implementation's maintenance.vacuum,
// which opens a fresh non-transactional connection for exactly this
// reason.
func (s *Store) vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`VACUUM`)
	return err
}

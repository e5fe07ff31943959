// Package discover implements file discovery (C1): walking one root and
// emitting paths whose extension is in the known image set.
//
// Walks with filepath.WalkDir (no redundant Lstat per entry) and adds
// symlink-cycle detection and a wide supported-extension set.
package discover

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ImageExtensions is the full set of extensions file discovery
// recognizes, case-insensitively — a broad set covering common raster
// and RAW container formats.
var ImageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {},
	".tiff": {}, ".tif": {}, ".webp": {}, ".heic": {}, ".heif": {},
	".avif": {}, ".jxl": {},
	".cr2": {}, ".nef": {}, ".arw": {}, ".dng": {}, ".raf": {},
	".orf": {}, ".rw2": {},
}

// IsSupportedImage reports whether path's extension is in
// ImageExtensions, case-insensitively.
func IsSupportedImage(path string) bool {
	_, ok := ImageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Walk emits absolute paths under root whose extension is a supported
// image type. If recursive is false, only root's immediate children are
// visited. Unreadable directories are logged and traversal continues.
// Symlink cycles are detected via a visited-directory set keyed by the
// target's fully resolved path and skipped rather than followed forever.
func Walk(ctx context.Context, root string, recursive bool) (<-chan string, <-chan error) {
	paths := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errs)

		if !recursive {
			walkOneLevel(ctx, root, paths)
			return
		}

		visited := newVisitedSet()
		visited.markVisited(root)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("discover: skipping unreadable entry")
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				return handleSymlink(path, visited, paths)
			}

			if d.IsDir() {
				if path != root && !visited.markVisited(path) {
					return fs.SkipDir
				}
				return nil
			}

			if IsSupportedImage(path) {
				select {
				case paths <- path:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil && err != context.Canceled {
			errs <- err
		}
	}()

	return paths, errs
}

func walkOneLevel(ctx context.Context, root string, paths chan<- string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Warn().Err(err).Str("path", root).Msg("discover: cannot read directory")
		return
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if IsSupportedImage(path) {
			select {
			case paths <- path:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleSymlink resolves a symlink and, if it points at a regular file,
// emits it when it's an image; directory symlinks are followed once per
// target and then recorded as visited to break cycles.
func handleSymlink(path string, visited *visitedSet, paths chan<- string) error {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("discover: broken symlink")
		return nil
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		if !visited.markVisited(resolved) {
			return nil
		}
		sub, errs := Walk(context.Background(), resolved, true)
		for p := range sub {
			paths <- p
		}
		for e := range errs {
			log.Warn().Err(e).Msg("discover: error walking symlinked directory")
		}
		return nil
	}
	if IsSupportedImage(resolved) {
		paths <- path
	}
	return nil
}

type visitedSet struct {
	seen map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[string]struct{})}
}

// markVisited returns true if path was not previously visited (and
// records it), false if it was already visited (meaning the caller hit
// a cycle and should skip it).
func (v *visitedSet) markVisited(path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	if _, ok := v.seen[resolved]; ok {
		return false
	}
	v.seen[resolved] = struct{}{}
	return true
}

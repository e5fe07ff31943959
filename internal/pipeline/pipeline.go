// Package pipeline implements the pipeline orchestrator (C9): the
// single public Scan operation composing C1 -> C4 -> {C6, C8}.
//
// This factors the walk/hash/group composition out into a UI-agnostic
// library call: the caller opens and closes the *cache.Store, and the
// orchestrator only borrows it.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"duplifind/internal/analyze"
	"duplifind/internal/cache"
	"duplifind/internal/decode"
	"duplifind/internal/discover"
	"duplifind/internal/driver"
	"duplifind/internal/match"
	"duplifind/internal/models"
)

// Options configures a single Scan call.
type Options struct {
	Recursive  bool
	Threshold  int
	Mode       models.RunMode
	LSHMode    models.LSHMode
	UseCache   bool
	Workers    int
	ProgressFn func(driver.Progress)
}

// DefaultOptions returns the baseline configuration: recursive, both
// grouping stages, auto LSH, cache on, 4 workers — matching the
// DEFAULT_WORKERS=4 and DEFAULT_THRESHOLD=10 as baseline defaults.
func DefaultOptions() Options {
	return Options{
		Recursive: true,
		Threshold: 10,
		Mode:      models.ModeBoth,
		LSHMode:   models.LSHAuto,
		UseCache:  true,
		Workers:   4,
	}
}

// ScanError is returned when BAD_ARGUMENT validation fails before any
// work starts.
type ScanError struct {
	Kind    models.ErrorKind
	Message string
}

func (e *ScanError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func validate(root string, opts Options) error {
	if !filepath.IsAbs(root) {
		return &ScanError{Kind: models.ErrorBadArgument, Message: "root must be an absolute path"}
	}
	if opts.Threshold < 0 || opts.Threshold > 64 {
		return &ScanError{Kind: models.ErrorBadArgument, Message: "threshold must be in 0..64"}
	}
	if opts.Workers < 1 {
		return &ScanError{Kind: models.ErrorBadArgument, Message: "workers must be >= 1"}
	}
	return nil
}

// Scan runs one full detection pass over root: discovery, parallel
// analysis (consulting store when UseCache), then exact and/or
// perceptual grouping per opts.Mode. store may be nil when UseCache is
// false; the caller owns its lifecycle either way.
func Scan(ctx context.Context, root string, store *cache.Store, dec decode.Decoder, opts Options) (*models.ScanResult, error) {
	if err := validate(root, opts); err != nil {
		return nil, err
	}

	result := &models.ScanResult{ModeUsed: opts.Mode, LSHModeUsed: opts.LSHMode}

	fi, err := os.Stat(root)
	if err != nil {
		return nil, &ScanError{Kind: models.ErrorBadArgument, Message: err.Error()}
	}
	if !fi.IsDir() {
		return nil, &ScanError{Kind: models.ErrorBadArgument, Message: "root is not a directory"}
	}

	paths, walkErrs := discover.Walk(ctx, root, opts.Recursive)

	analyzer := analyze.New(dec)
	outcomes := driver.Run(ctx, paths, store, analyzer.Analyze, driver.Options{
		Workers:    opts.Workers,
		UseCache:   opts.UseCache && store != nil,
		ProgressFn: opts.ProgressFn,
	})

	cacheStats := models.CacheStats{}
	for o := range outcomes {
		cacheStats.TotalFiles++
		if o.CacheHit {
			cacheStats.CacheHits++
		} else {
			cacheStats.CacheMisses++
		}
		if o.Record != nil {
			result.Records = append(result.Records, o.Record)
		}
		if o.Error != nil {
			result.Errors = append(result.Errors, o.Error)
		}
	}
	result.CacheStats = cacheStats
	if store != nil {
		result.CacheDegraded = store.Degraded()
	}

	for e := range walkErrs {
		log.Warn().Err(e).Str("root", root).Msg("pipeline: discovery error")
	}

	if ctx.Err() != nil {
		result.Partial = true
		return result, nil
	}

	var exactGroups []*models.DuplicateGroup
	var exclude map[string]struct{}
	if opts.Mode == models.ModeExactOnly || opts.Mode == models.ModeBoth {
		exactGroups, exclude = match.Exact(result.Records)
	}

	var perceptualGroups []*models.DuplicateGroup
	if opts.Mode == models.ModePerceptualOnly || opts.Mode == models.ModeBoth {
		perceptualGroups = match.Perceptual(result.Records, opts.Threshold, exclude, opts.LSHMode)
	}

	result.Groups = append(result.Groups, exactGroups...)
	result.Groups = append(result.Groups, perceptualGroups...)

	return result, nil
}


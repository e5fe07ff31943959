// Package driver implements the parallel driver (C4): it fans analyzer
// work across workers with backpressure and a rate-limited progress
// callback.
//
// Workers run under an errgroup-managed pool rather than a raw
// sync.WaitGroup, and a single dedicated collector goroutine owns all
// progress-reporting state — no worker ever touches shared progress
// state directly, so there's nothing to lock.
package driver

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"duplifind/internal/cache"
	"duplifind/internal/models"
)

// Outcome is one analyzed (or failed) path, as produced by a worker.
type Outcome struct {
	Record   *models.ImageRecord
	Error    *models.ErrorRecord
	CacheHit bool
}

// Progress is the running counts and computed rate the collector
// reports, rate-limited per Options.ProgressInterval.
type Progress struct {
	Found, Analyzed, CacheHits, Errors int
	RecordsPerSecond                   float64
	ETA                                time.Duration
}

// Options configures one Run.
type Options struct {
	Workers            int
	UseCache           bool
	ProgressInterval   time.Duration // defaults to 500ms
	RateBucketInterval time.Duration // defaults to 2s; window the rate EMA smooths over
	ProgressFn         func(Progress)
}

const (
	defaultProgressInterval   = 500 * time.Millisecond
	defaultRateBucketInterval = 2 * time.Second
	rateEMAAlpha              = 0.5
)

// Run schedules one analyze call per path received from paths, with
// Options.Workers concurrent workers, each consulting store.GetOrCompute
// (when UseCache) before falling through to analyzeFn. It returns a
// channel of Outcomes, which is closed once the run completes or ctx is
// cancelled; running counts are reported only through Options.ProgressFn.
//
// The input channel is read through a bounded buffer of 4*workers
// capacity for backpressure; paths itself may be unbuffered since
// discovery already streams lazily.
func Run(ctx context.Context, paths <-chan string, store *cache.Store, analyzeFn func(context.Context, string) (*models.ImageRecord, *models.ErrorRecord), opts Options) <-chan Outcome {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	if opts.RateBucketInterval <= 0 {
		opts.RateBucketInterval = defaultRateBucketInterval
	}

	var found atomic.Int64
	buffered := make(chan string, 4*opts.Workers)
	go func() {
		defer close(buffered)
		for p := range paths {
			select {
			case buffered <- p:
				found.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make(chan Outcome)

	go func() {
		defer close(out)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)

		collected := make(chan Outcome)
		done := make(chan struct{})

		go func() {
			defer close(done)
			runCollector(collected, out, opts, &found)
		}()

		for path := range buffered {
			path := path
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				collected <- analyzeOne(gctx, path, store, opts.UseCache, analyzeFn)
				return nil
			})
		}
		g.Wait()
		close(collected)
		<-done
	}()

	return out
}

func analyzeOne(ctx context.Context, path string, store *cache.Store, useCache bool, analyzeFn func(context.Context, string) (*models.ImageRecord, *models.ErrorRecord)) Outcome {
	if !useCache || store == nil {
		rec, errRec := analyzeFn(ctx, path)
		return Outcome{Record: rec, Error: errRec}
	}

	key, err := keyFor(path)
	if err != nil {
		return Outcome{Error: &models.ErrorRecord{Path: path, Kind: models.ErrorIO, Message: err.Error()}}
	}

	rec, errRec, hit := store.GetOrCompute(ctx, key, func() (*models.ImageRecord, *models.ErrorRecord) {
		return analyzeFn(ctx, path)
	})
	return Outcome{Record: rec, Error: errRec, CacheHit: hit}
}

// runCollector is the sole owner of the running counts and the sole
// caller of ProgressFn, so no per-worker locking is needed. The
// processing rate is an EMA over RateBucketInterval-sized buckets
// rather than a plain cumulative average, so it tracks recent
// throughput instead of being dragged down by a slow start or a slow
// patch in the middle of a long run.
func runCollector(in <-chan Outcome, out chan<- Outcome, opts Options, found *atomic.Int64) {
	var p Progress
	var lastReport time.Time

	var emaRate float64
	bucketStart := time.Now()
	bucketCount := 0

	updateRate := func(now time.Time, force bool) {
		elapsed := now.Sub(bucketStart)
		if elapsed <= 0 || (!force && elapsed < opts.RateBucketInterval) {
			return
		}
		instant := float64(bucketCount) / elapsed.Seconds()
		if emaRate == 0 {
			emaRate = instant
		} else {
			emaRate = rateEMAAlpha*instant + (1-rateEMAAlpha)*emaRate
		}
		bucketStart = now
		bucketCount = 0
	}

	report := func(force bool) {
		if opts.ProgressFn == nil {
			return
		}
		now := time.Now()
		if !force && now.Sub(lastReport) < opts.ProgressInterval {
			return
		}
		lastReport = now

		updateRate(now, force)
		p.Found = int(found.Load())
		p.RecordsPerSecond = emaRate

		remaining := p.Found - p.Analyzed
		if emaRate > 0 && remaining > 0 {
			p.ETA = time.Duration(float64(remaining) / emaRate * float64(time.Second))
		} else {
			p.ETA = 0
		}

		opts.ProgressFn(p)
	}

	for outcome := range in {
		p.Analyzed++
		bucketCount++
		if outcome.CacheHit {
			p.CacheHits++
		}
		if outcome.Error != nil {
			p.Errors++
		}
		report(false)
		out <- outcome
	}
	report(true)
}

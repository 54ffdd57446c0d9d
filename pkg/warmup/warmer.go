package warmup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds warmer configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel loads
	MaxConcurrency int
	// Timeout per source; the shared fetch itself is bounded by the fetcher
	Timeout time.Duration
}

// DefaultConfig returns the default warmer configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 2,
		Timeout:        60 * time.Second,
	}
}

// Prefetcher loads one source and reports whether usable text is available.
type Prefetcher interface {
	Prefetch(ctx context.Context, sourceURL string) bool
}

// Result is the outcome of loading one source
type Result struct {
	Source string
	Loaded bool
}

// Report summarizes a warmup run
type Report struct {
	Loaded   []string
	Failed   []string
	Duration time.Duration
}

// Warmer loads sources in parallel
type Warmer struct {
	prefetcher Prefetcher
	config     Config
}

// New creates a new warmer
func New(prefetcher Prefetcher, config Config) *Warmer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Warmer{
		prefetcher: prefetcher,
		config:     config,
	}
}

// Run loads every source and returns once all loads finished or ctx ended.
// Duplicate and empty entries are skipped.
func (w *Warmer) Run(ctx context.Context, sources []string) Report {
	start := time.Now()
	sources = dedupe(sources)

	log.Info().
		Int("sources", len(sources)).
		Int("workers", w.config.MaxConcurrency).
		Msg("Starting warmup")

	queue := make(chan string, len(sources))
	for _, src := range sources {
		queue <- src
	}
	close(queue)

	results := make(chan Result, len(sources))

	var wg sync.WaitGroup
	workers := w.config.MaxConcurrency
	if workers > len(sources) {
		workers = len(sources)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go w.worker(ctx, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var report Report
	for res := range results {
		if res.Loaded {
			report.Loaded = append(report.Loaded, res.Source)
		} else {
			report.Failed = append(report.Failed, res.Source)
		}
	}
	report.Duration = time.Since(start)

	log.Info().
		Int("loaded", len(report.Loaded)).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("Warmup complete")

	return report
}

// worker processes sources from the queue
func (w *Warmer) worker(ctx context.Context, queue <-chan string, results chan<- Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for src := range queue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		srcCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		loaded := w.prefetcher.Prefetch(srcCtx, src)
		cancel()

		if !loaded {
			log.Warn().
				Int("worker_id", workerID).
				Str("source", src).
				Msg("Warmup load failed")
		}
		results <- Result{Source: src, Loaded: loaded}
	}
}

func dedupe(sources []string) []string {
	seen := make(map[string]bool, len(sources))
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}

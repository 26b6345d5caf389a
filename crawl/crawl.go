// Package crawl implements the Crawler Strategy: frontier management,
// scope enforcement, a bounded worker pool, and progress reporting for a
// single scrape job. It knows nothing about fetching, rendering, or
// storage — those are injected via ProcessFunc.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
)

// Options controls one crawl run.
type Options struct {
	MaxPages       int
	MaxDepth       int
	MaxConcurrency int
	Scope          Scope
	IgnoreErrors   bool
	Logger         *slog.Logger
}

func (o *Options) defaults() {
	if o.MaxPages <= 0 {
		o.MaxPages = 1000
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = 3
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 3
	}
	if o.Scope == "" {
		o.Scope = ScopeSubpages
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Progress is reported after every page attempt.
type Progress struct {
	PagesProcessed int
	PagesFailed    int
	FrontierSize   int
}

// ProcessFunc fetches, renders, and persists one page, returning the
// absolute links discovered on it for frontier admission.
type ProcessFunc func(ctx context.Context, pageURL string, depth int) (links []string, err error)

// Crawler runs a single bounded, scope-aware crawl job.
type Crawler struct {
	opts Options
}

// New creates a Crawler.
func New(opts Options) *Crawler {
	opts.defaults()
	return &Crawler{opts: opts}
}

// Run crawls from seedURL until the frontier is exhausted, max_pages is
// reached, or ctx is cancelled. It returns the first processing error
// only when IgnoreErrors is false; otherwise errors are logged and the
// crawl continues.
func (c *Crawler) Run(ctx context.Context, seedURL string, process ProcessFunc, onProgress func(Progress)) error {
	opts := c.opts
	seed, err := url.Parse(seedURL)
	if err != nil {
		return fmt.Errorf("crawl: invalid seed URL: %w", err)
	}
	checker := newScopeChecker(opts.Scope, seed)

	fr := newFrontier()
	if _, err := fr.seed(seedURL); err != nil {
		return fmt.Errorf("crawl: seed URL: %w", err)
	}

	workCh := make(chan entry, opts.MaxPages)
	workCh <- entry{url: seedURL, depth: 0}

	var pending sync.WaitGroup
	pending.Add(1)

	var processed, failed int64
	var firstErr error
	var firstErrMu sync.Mutex

	waitDone := make(chan struct{})
	go func() {
		pending.Wait()
		close(waitDone)
	}()
	go func() {
		select {
		case <-waitDone:
		case <-ctx.Done():
		}
		close(workCh)
	}()

	var workers sync.WaitGroup
	for i := 0; i < opts.MaxConcurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for e := range workCh {
				c.handleEntry(ctx, e, fr, checker, opts, process, &pending, &processed, &failed, &firstErr, &firstErrMu, workCh)
				if onProgress != nil {
					onProgress(Progress{
						PagesProcessed: int(atomic.LoadInt64(&processed)),
						PagesFailed:    int(atomic.LoadInt64(&failed)),
						FrontierSize:   len(workCh),
					})
				}
			}
		}()
	}
	workers.Wait()

	if !opts.IgnoreErrors {
		firstErrMu.Lock()
		defer firstErrMu.Unlock()
		return firstErr
	}
	return nil
}

func (c *Crawler) handleEntry(
	ctx context.Context,
	e entry,
	fr *frontier,
	checker *scopeChecker,
	opts Options,
	process ProcessFunc,
	pending *sync.WaitGroup,
	processed, failed *int64,
	firstErr *error,
	firstErrMu *sync.Mutex,
	workCh chan entry,
) {
	defer pending.Done()
	defer fr.done()

	select {
	case <-ctx.Done():
		return
	default:
	}

	links, err := process(ctx, e.url, e.depth)
	if err != nil {
		atomic.AddInt64(failed, 1)
		opts.Logger.Warn("crawl: page failed", "url", e.url, "error", err)
		firstErrMu.Lock()
		if *firstErr == nil {
			*firstErr = err
		}
		firstErrMu.Unlock()
		if !opts.IgnoreErrors {
			return
		}
	} else {
		atomic.AddInt64(processed, 1)
	}

	if e.depth+1 > opts.MaxDepth {
		return
	}

	for _, link := range links {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if fr.visitedCount() >= opts.MaxPages {
			break
		}
		candidate, perr := url.Parse(link)
		if perr != nil || !checker.allows(candidate) {
			continue
		}
		if fr.offer(link) {
			pending.Add(1)
			select {
			case workCh <- entry{url: link, depth: e.depth + 1, parentURL: e.url}:
			default:
				// Frontier channel is sized to MaxPages; this should not
				// happen since offer() is gated by visitedCount above.
				pending.Done()
			}
		}
	}
}

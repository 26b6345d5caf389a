// Package docreef wires the Fetcher set, Content Pipeline, Crawler
// Strategy, Semantic Splitter, Document Store, Version Resolver, and
// Retriever into the external operations of the documentation engine:
// scrape, search, list_libraries, find_version, list_jobs, get_job,
// cancel_job, remove, and fetch_url.
package docreef

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/docreef/docreef/browser"
	"github.com/docreef/docreef/crawl"
	"github.com/docreef/docreef/dbopen"
	"github.com/docreef/docreef/errs"
	"github.com/docreef/docreef/fetch"
	"github.com/docreef/docreef/manager"
	"github.com/docreef/docreef/pipeline"
	"github.com/docreef/docreef/retriever"
	"github.com/docreef/docreef/split"
	"github.com/docreef/docreef/store"
	"github.com/docreef/docreef/version"
)

// Engine is the assembled documentation engine: one per running process.
type Engine struct {
	cfg Config

	fetchers *fetch.Set
	browsers *browser.Manager
	pipe     *pipeline.Pipeline
	docs     *store.Store
	jobs     *manager.Manager
	search   *retriever.Retriever
	embedder Embedder

	logger *slog.Logger
}

// Embedder is the embeddings provider consumed by the Retriever. The
// concrete implementation is out of scope; callers inject one (e.g. an
// adapter over an external embeddings service) at construction time.
type Embedder = retriever.Embedder

// New assembles an Engine from cfg, an open document-store database
// handle, and an embedder. The caller owns db's lifecycle and is
// responsible for calling Start/Close on the returned Engine's browser
// manager around the process's own lifecycle.
func New(cfg Config, db *sql.DB, embedder Embedder, logger *slog.Logger) (*Engine, error) {
	cfg.Defaults()
	if logger == nil {
		logger = slog.Default()
	}

	docStore, err := store.New(db, store.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("docreef: open document store: %w", err)
	}

	browsers := browser.NewManager(cfg.Browser.toConfig())
	pipe := pipeline.New(browsers)

	httpFetcher := fetch.NewHTTPFetcher(cfg.Fetch.toHTTPConfig())
	fetchers := fetch.NewSet(logger,
		&fetch.FileFetcher{},
		fetch.NewGitHostFetcher(httpFetcher),
		httpFetcher,
	)

	e := &Engine{
		cfg:      cfg,
		fetchers: fetchers,
		browsers: browsers,
		pipe:     pipe,
		docs:     docStore,
		search:   retriever.New(docStore, embedder),
		embedder: embedder,
		logger:   logger,
	}
	e.jobs = manager.New(cfg.Job.toManagerConfig(), e.runScrapeJob)
	return e, nil
}

// Start opens the document store's schema and launches the headless
// browser; both are idempotent and safe to call once at process startup.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.docs.Initialize(ctx); err != nil {
		return err
	}
	if _, err := e.browsers.Start(ctx); err != nil {
		e.logger.Warn("docreef: headless browser unavailable, falling back to plain fetch rendering", "error", err)
	}
	return nil
}

// Close releases the headless browser. The document-store database
// connection is owned by the caller and is not closed here.
func (e *Engine) Close() error {
	return e.browsers.Close()
}

// ScrapeRequest is the scrape operation's input.
type ScrapeRequest struct {
	Library      string
	Version      string
	SeedURL      string
	Crawl        crawl.Options
	Pipeline     pipeline.Options
	Split        split.Options
	Wait         bool
	ReplaceScope bool // DeleteScope before crawling, so a rerun is not additive
}

// Scrape enqueues (and, if Wait, runs to completion) a crawl job for
// req.SeedURL into the (req.Library, req.Version) scope.
func (e *Engine) Scrape(ctx context.Context, req ScrapeRequest) (*manager.Job, error) {
	if req.SeedURL == "" {
		return nil, errs.New(errs.ValidationError, "seed_url is required")
	}
	if req.ReplaceScope {
		if err := e.docs.DeleteScope(ctx, req.Library, req.Version); err != nil {
			return nil, err
		}
	}
	return e.jobs.Enqueue(ctx, req.Library, req.Version, req.SeedURL, req, req.Wait)
}

// runScrapeJob is the manager.RunFunc backing every Scrape call: it drives
// crawl.Crawler over the job's seed URL, running each page through the
// fetch -> pipeline -> split chain and persisting the resulting chunks.
func (e *Engine) runScrapeJob(ctx context.Context, job *manager.Job) error {
	req, ok := job.Options.(ScrapeRequest)
	if !ok {
		return errs.New(errs.ValidationError, "job missing scrape options")
	}

	crawlOpts := req.Crawl
	crawlOpts.Logger = e.logger
	crawler := crawl.New(crawlOpts)

	process := func(ctx context.Context, pageURL string, depth int) ([]string, error) {
		if job.Cancelled() {
			return nil, context.Canceled
		}
		return e.processPage(ctx, job, req, pageURL)
	}

	onProgress := func(p crawl.Progress) {
		job.SetProgress(manager.Progress{
			PagesProcessed: p.PagesProcessed,
			PagesFailed:    p.PagesFailed,
			PagesQueued:    p.FrontierSize,
		})
	}

	return crawler.Run(ctx, req.SeedURL, process, onProgress)
}

func (e *Engine) processPage(ctx context.Context, job *manager.Job, req ScrapeRequest, pageURL string) ([]string, error) {
	res, err := e.fetchers.Fetch(ctx, pageURL, fetch.Options{
		FollowRedirects: true,
		Cancel:          job.Done(),
	})
	if err != nil {
		return nil, err
	}

	pipeOpts := req.Pipeline
	pipeOpts.Logger = e.logger
	doc, err := e.pipe.Run(ctx, res, pipeOpts)
	if err != nil {
		return nil, err
	}

	splitOpts := req.Split
	splitOpts.Logger = e.logger
	pieces := split.Split(doc.Markdown, splitOpts)
	if len(pieces) > 0 {
		chunks := e.buildChunks(ctx, pageURL, doc.Title, pieces)
		if err := e.docs.AddChunks(ctx, req.Library, req.Version, chunks); err != nil {
			return nil, err
		}
	}

	return doc.Links, nil
}

// buildChunks embeds and assembles the store.Chunk records for one page's
// split pieces. Embedding failures are per-chunk: a chunk whose embedding
// fails is still stored (retrievable by a future lexical-only pass) with
// an empty vector rather than failing the whole page.
func (e *Engine) buildChunks(ctx context.Context, sourceURL, title string, pieces []split.Chunk) []store.Chunk {
	chunks := make([]store.Chunk, len(pieces))
	for i, p := range pieces {
		vec, err := e.embedder.Embed(ctx, p.Content)
		if err != nil {
			e.logger.Warn("docreef: embed chunk failed, storing without vector", "source_url", sourceURL, "error", err)
			vec = nil
		}
		chunks[i] = store.Chunk{
			SourceURL:    sourceURL,
			Title:        title,
			Content:      p.Content,
			Types:        chunkTypes(p.Types),
			SectionLevel: p.Section.Level,
			SectionPath:  p.Section.Path,
			Embedding:    vec,
		}
	}
	return chunks
}

func chunkTypes(types map[split.Type]bool) []store.Type {
	out := make([]store.Type, 0, len(types))
	for t := range types {
		out = append(out, store.Type(t))
	}
	return out
}

// Search executes hybrid retrieval for (library, target) scoped to the
// resolved version.
func (e *Engine) Search(ctx context.Context, library, target, query string, opts retriever.Options) ([]retriever.Hit, error) {
	return e.search.Search(ctx, library, target, query, opts)
}

// FindVersion resolves the best indexed version for (library, target)
// without performing a search.
func (e *Engine) FindVersion(ctx context.Context, library, target string) (version.Result, error) {
	return e.search.ResolveVersion(ctx, library, target)
}

// ListLibraries returns every indexed library mapped to its indexed
// versions (the empty string denotes the unversioned bucket).
func (e *Engine) ListLibraries(ctx context.Context) (map[string][]string, error) {
	return e.docs.QueryLibraryVersions(ctx)
}

// ListJobs returns scheduled jobs, optionally filtered by status.
func (e *Engine) ListJobs(status *manager.Status) []*manager.Job {
	return e.jobs.ListJobs(status)
}

// GetJob returns the job record for id, or nil if unknown.
func (e *Engine) GetJob(id string) *manager.Job {
	return e.jobs.GetJob(id)
}

// CancelJob requests cancellation of the running or queued job id.
func (e *Engine) CancelJob(id string) (success bool, message string, err error) {
	return e.jobs.CancelJob(id)
}

// Remove deletes every chunk indexed for (library, version).
func (e *Engine) Remove(ctx context.Context, library, ver string) error {
	return e.docs.DeleteScope(ctx, library, ver)
}

// FetchURL is the thin synchronous path described in §6: a single page is
// fetched, rendered, and converted to Markdown, with no crawl job and no
// store write. It is for callers that just want the Markdown for a URL
// they already know, not for indexing it into a library/version scope.
func (e *Engine) FetchURL(ctx context.Context, pageURL string, followRedirects bool) (string, error) {
	res, err := e.fetchers.Fetch(ctx, pageURL, fetch.Options{FollowRedirects: followRedirects})
	if err != nil {
		return "", err
	}
	opts := pipeline.Options{Logger: e.logger}
	doc, err := e.pipe.Run(ctx, res, opts)
	if err != nil {
		return "", err
	}
	return doc.Markdown, nil
}

// OpenStore is a convenience wrapper over dbopen for callers assembling
// an Engine from a Config rather than an already-open *sql.DB.
func OpenStore(cfg StoreConfig) (*sql.DB, error) {
	return dbopen.Open(cfg.Path)
}

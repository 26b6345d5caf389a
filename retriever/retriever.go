// Package retriever implements hybrid search: it recalls candidates by
// vector similarity from the Document Store and re-ranks them lexically
// (BM25-class) over the original query terms, plus the version
// resolution every search is scoped by.
package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/docreef/docreef/errs"
	"github.com/docreef/docreef/store"
	"github.com/docreef/docreef/version"
)

// Embedder converts query text to a vector. This is the narrow consumed
// interface the Retriever actually needs; the production embedding
// provider is injected by the caller.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the subset of store.Store the Retriever depends on.
type Store interface {
	VectorSearch(ctx context.Context, library, ver string, queryVec []float32, k int) ([]store.SearchResult, error)
	QueryUniqueVersions(ctx context.Context, library string) ([]string, error)
	QueryLibraryVersions(ctx context.Context) (map[string][]string, error)
}

// Hit is one ranked search result.
type Hit struct {
	URL     string
	Content string
	Score   float64
	Title   string
	Library string
	Version string
	// SectionPath and SectionLevel place the chunk in its source
	// document's heading hierarchy.
	SectionPath  []string
	SectionLevel int
}

// Options controls one Search call.
type Options struct {
	Limit int
	// ExactMatch requires the resolved version to equal the target exactly
	// (after normalization), rejecting the older-docs fallback.
	ExactMatch bool
	// OverfetchFactor controls how many vector candidates are recalled
	// before lexical re-ranking (typical policy: 2x the limit).
	// Default 2.
	OverfetchFactor int
}

func (o *Options) defaults() {
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.OverfetchFactor <= 0 {
		o.OverfetchFactor = 2
	}
}

// Retriever is the hybrid search engine.
type Retriever struct {
	store    Store
	embedder Embedder
	scorer   *bm25Scorer
}

// New creates a Retriever over store using embedder to embed queries.
func New(st Store, embedder Embedder) *Retriever {
	return &Retriever{store: st, embedder: embedder, scorer: newBM25Scorer()}
}

// ResolveVersion runs version resolution for library/target against the
// store's currently indexed versions, raising LibraryNotFound when
// library has no indexed scope at all.
func (r *Retriever) ResolveVersion(ctx context.Context, library, target string) (version.Result, error) {
	libVersions, err := r.store.QueryLibraryVersions(ctx)
	if err != nil {
		return version.Result{}, errs.Wrap(errs.ProcessingFailed, err, "query library versions")
	}
	libNorm := version.NormalizeLibrary(library)
	versions, known := libVersions[libNorm]
	if !known {
		return version.Result{}, errs.New(errs.LibraryNotFound, "no library indexed: "+library).
			WithSuggestions(suggestLibraries(libNorm, libVersions)...)
	}

	idx := version.Indexed{}
	for _, v := range versions {
		if v == "" {
			idx.HasUnversioned = true
			continue
		}
		idx.Versions = append(idx.Versions, v)
	}

	res, err := version.FindBestVersion(library, target, idx)
	if err != nil {
		return version.Result{}, err
	}
	return res, nil
}

// Search executes hybrid retrieval.
func (r *Retriever) Search(ctx context.Context, library, target, query string, opts Options) ([]Hit, error) {
	opts.defaults()

	resolved, err := r.ResolveVersion(ctx, library, target)
	if err != nil {
		return nil, err
	}

	scopeVersion := resolved.BestMatch
	if scopeVersion == "" && !resolved.HasUnversioned {
		// find_best_version succeeded (e.g. none of the library's indexed
		// version strings is valid semver and it has no unversioned
		// bucket) but there is nothing to actually query.
		return nil, nil
	}
	if opts.ExactMatch {
		wantNorm := version.Normalize(target)
		gotNorm := version.Normalize(scopeVersion)
		if wantNorm != "" && wantNorm != gotNorm {
			return nil, errs.New(errs.VersionNotFound, "no exact match for "+target).
				WithSuggestions(resolved.BestMatch)
		}
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.ProcessingFailed, err, "embed query")
	}

	candidates, err := r.store.VectorSearch(ctx, library, scopeVersion, queryVec, opts.Limit*opts.OverfetchFactor)
	if err != nil {
		return nil, errs.Wrap(errs.ProcessingFailed, err, "vector search")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	queryTerms := tokenize(query)
	docs := make([][]string, len(candidates))
	for i, c := range candidates {
		docs[i] = tokenize(c.Content)
	}
	lexScores := r.scorer.score(queryTerms, docs)

	type ranked struct {
		idx      int
		lexScore float64
		vecScore float64
	}
	rs := make([]ranked, len(candidates))
	for i := range candidates {
		rs[i] = ranked{idx: i, lexScore: lexScores[i], vecScore: candidates[i].Score}
	}
	sort.SliceStable(rs, func(a, b int) bool {
		if rs[a].lexScore != rs[b].lexScore {
			return rs[a].lexScore > rs[b].lexScore
		}
		return rs[a].vecScore > rs[b].vecScore
	})

	limit := opts.Limit
	if limit > len(rs) {
		limit = len(rs)
	}
	out := make([]Hit, limit)
	for i := 0; i < limit; i++ {
		c := candidates[rs[i].idx]
		out[i] = Hit{
			URL:          c.SourceURL,
			Content:      c.Content,
			Score:        rs[i].lexScore,
			Title:        c.Title,
			Library:      c.Library,
			Version:      c.Version,
			SectionPath:  c.SectionPath,
			SectionLevel: c.SectionLevel,
		}
	}
	return out, nil
}

// suggestLibraries returns up to 3 known libraries closest to query by
// edit distance, for LibraryNotFound's fuzzy-match suggestion list.
func suggestLibraries(query string, libVersions map[string][]string) []string {
	type scored struct {
		name string
		dist int
	}
	all := make([]scored, 0, len(libVersions))
	for name := range libVersions {
		all = append(all, scored{name: name, dist: levenshtein(query, name)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].dist != all[j].dist {
			return all[i].dist < all[j].dist
		}
		return all[i].name < all[j].name
	})
	n := 3
	if n > len(all) {
		n = len(all)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].name
	}
	return out
}

func levenshtein(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

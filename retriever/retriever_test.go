package retriever

import (
	"context"
	"testing"

	"github.com/docreef/docreef/store"
)

type fakeStore struct {
	libVersions map[string][]string
	hits        map[string][]store.SearchResult // keyed by library\x00version
}

func (f *fakeStore) VectorSearch(ctx context.Context, library, ver string, queryVec []float32, k int) ([]store.SearchResult, error) {
	hits := f.hits[library+"\x00"+ver]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeStore) QueryUniqueVersions(ctx context.Context, library string) ([]string, error) {
	return f.libVersions[library], nil
}

func (f *fakeStore) QueryLibraryVersions(ctx context.Context) (map[string][]string, error) {
	return f.libVersions, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func TestSearch_ReturnsLexicallyRerankedHits(t *testing.T) {
	st := &fakeStore{
		libVersions: map[string][]string{"kafka": {"3.5.0"}},
		hits: map[string][]store.SearchResult{
			"kafka\x003.5.0": {
				{Chunk: store.Chunk{SourceURL: "https://a", Content: "partition rebalance protocol"}, Score: 0.5},
				{Chunk: store.Chunk{SourceURL: "https://b", Content: "consumer group rebalance strategy details"}, Score: 0.9},
			},
		},
	}
	r := New(st, fakeEmbedder{})

	hits, err := r.Search(context.Background(), "kafka", "3.5.0", "rebalance protocol", Options{Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	// "partition rebalance protocol" matches both query terms; it should
	// outrank the other document despite its lower vector score.
	if hits[0].URL != "https://a" {
		t.Errorf("expected https://a ranked first, got %s", hits[0].URL)
	}
}

func TestSearch_LibraryNotFound(t *testing.T) {
	st := &fakeStore{libVersions: map[string][]string{"react": nil}}
	r := New(st, fakeEmbedder{})

	_, err := r.Search(context.Background(), "kafka", "", "query", Options{})
	if err == nil {
		t.Fatal("expected LibraryNotFound error")
	}
}

func TestSearch_EmptyScopeReturnsEmptyNotError(t *testing.T) {
	st := &fakeStore{
		libVersions: map[string][]string{"kafka": {"3.5.0"}},
		hits:        map[string][]store.SearchResult{},
	}
	r := New(st, fakeEmbedder{})

	hits, err := r.Search(context.Background(), "kafka", "3.5.0", "query", Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if hits != nil {
		t.Fatalf("expected empty result, got %v", hits)
	}
}

func TestSearch_UnversionedBucketOnly(t *testing.T) {
	st := &fakeStore{
		libVersions: map[string][]string{"internal-tool": {""}},
		hits: map[string][]store.SearchResult{
			"internal-tool\x00": {
				{Chunk: store.Chunk{SourceURL: "https://docs/internal", Content: "setup guide"}, Score: 0.8},
			},
		},
	}
	r := New(st, fakeEmbedder{})

	hits, err := r.Search(context.Background(), "internal-tool", "3.0.0", "setup", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].URL != "https://docs/internal" {
		t.Fatalf("expected unversioned bucket hit, got %v", hits)
	}
}

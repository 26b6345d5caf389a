package fetch

import (
	"context"
	"testing"
)

type stubFetcher struct {
	prefix string
	result *Result
}

func (s *stubFetcher) CanFetch(source string) bool {
	return len(source) >= len(s.prefix) && source[:len(s.prefix)] == s.prefix
}

func (s *stubFetcher) Fetch(ctx context.Context, source string, opts Options) (*Result, error) {
	return s.result, nil
}

func TestSet_DispatchesToFirstMatch(t *testing.T) {
	a := &stubFetcher{prefix: "a:", result: &Result{MIME: "a"}}
	b := &stubFetcher{prefix: "b:", result: &Result{MIME: "b"}}
	set := NewSet(nil, a, b)

	res, err := set.Fetch(context.Background(), "b:thing", Options{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.MIME != "b" {
		t.Errorf("mime = %q, want b", res.MIME)
	}
}

func TestSet_NoMatchIsFetchFailed(t *testing.T) {
	set := NewSet(nil)
	_, err := set.Fetch(context.Background(), "unknown:thing", Options{})
	if err == nil {
		t.Fatal("expected error when no fetcher matches")
	}
}

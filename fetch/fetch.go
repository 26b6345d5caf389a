// Package fetch implements the capability-based fetcher set: a dispatcher
// over multiple Fetcher variants (HTTP, file://, and an optional
// source-hosting API fetcher), each claiming sources via CanFetch.
package fetch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docreef/docreef/errs"
)

// Result is what every fetcher returns.
type Result struct {
	Bytes     []byte
	MIME      string
	Charset   string
	SourceURL string
	Encoding  string
}

// Options controls a single fetch.
type Options struct {
	FollowRedirects bool
	Headers         map[string]string
	// Cancel is checked before issuing the request; a cancelled job aborts
	// promptly rather than starting a new network operation.
	Cancel <-chan struct{}
}

// Fetcher is a capability-dispatched source handler.
type Fetcher interface {
	CanFetch(source string) bool
	Fetch(ctx context.Context, source string, opts Options) (*Result, error)
}

// Set dispatches to the first registered Fetcher whose CanFetch matches.
type Set struct {
	fetchers []Fetcher
	logger   *slog.Logger
}

// NewSet builds a Set from an ordered list of fetchers; the first match
// wins, so register more specific fetchers before general ones.
func NewSet(logger *slog.Logger, fetchers ...Fetcher) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	return &Set{fetchers: fetchers, logger: logger}
}

// Register appends a fetcher to the end of the dispatch order.
func (s *Set) Register(f Fetcher) {
	s.fetchers = append(s.fetchers, f)
}

// Fetch dispatches source to the first fetcher whose CanFetch is true.
func (s *Set) Fetch(ctx context.Context, source string, opts Options) (*Result, error) {
	select {
	case <-opts.Cancel:
		return nil, context.Canceled
	default:
	}
	for _, f := range s.fetchers {
		if f.CanFetch(source) {
			return f.Fetch(ctx, source, opts)
		}
	}
	return nil, errs.New(errs.FetchFailed, fmt.Sprintf("no fetcher can handle %q", source))
}

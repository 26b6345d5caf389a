package fetch

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/docreef/docreef/errs"
	"github.com/docreef/docreef/safety"
)

// FileFetcher reads local files addressed by file:// URLs, for documentation
// sources that are mirrored or mounted on disk rather than crawled.
type FileFetcher struct {
	MaxBytes int64 // default safety.MaxResponseBody
}

func (f *FileFetcher) CanFetch(source string) bool {
	return strings.HasPrefix(source, "file://")
}

func (f *FileFetcher) Fetch(ctx context.Context, source string, opts Options) (*Result, error) {
	select {
	case <-opts.Cancel:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, errs.Wrap(errs.FetchFailed, err, "invalid file URL")
	}
	path := u.Path
	if runtimeWindowsDrive(path) {
		path = strings.TrimPrefix(path, "/")
	}
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return nil, errs.Wrap(errs.FetchFailed, err, "invalid file URL encoding")
	}

	f2, err := os.Open(decoded)
	if err != nil {
		return nil, errs.Wrap(errs.FetchFailed, err, "cannot open local file")
	}
	defer f2.Close()

	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = safety.MaxResponseBody
	}
	body, err := safety.LimitedReadAll(f2, maxBytes)
	if err != nil {
		return nil, errs.Wrap(errs.FetchFailed, err, "local file too large")
	}

	mime := mimeFromExt(decoded)
	if mime == "" {
		mime = http.DetectContentType(body)
	}

	return &Result{
		Bytes:     body,
		MIME:      mime,
		SourceURL: source,
	}, nil
}

func runtimeWindowsDrive(path string) bool {
	return len(path) >= 3 && path[0] == '/' && path[2] == ':'
}

var extMIME = map[string]string{
	".md":   "text/markdown",
	".mdx":  "text/markdown",
	".html": "text/html",
	".htm":  "text/html",
	".txt":  "text/plain",
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".pdf":  "application/pdf",
}

func mimeFromExt(path string) string {
	return extMIME[strings.ToLower(filepath.Ext(path))]
}

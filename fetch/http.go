package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/docreef/docreef/errs"
	"github.com/docreef/docreef/safety"
)

// HTTPConfig configures HTTPFetcher.
type HTTPConfig struct {
	BaseBackoff  time.Duration // default 1000ms
	MaxAttempts  int           // default 6
	MaxRedirects int           // cap applied when FollowRedirects=true; default 5
	MaxBytes     int64         // default 10MB
	Logger       *slog.Logger
	// URLValidator guards against SSRF; default safety.ValidateURL.
	URLValidator func(string) error
}

func (c *HTTPConfig) defaults() {
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 1000 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 6
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 5
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = safety.MaxResponseBody
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.URLValidator == nil {
		c.URLValidator = safety.ValidateURL
	}
}

var transientStatus = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true, 525: true,
}

// errRedirectBlocked signals a 3xx hit while FollowRedirects=false.
type errRedirectBlocked struct {
	original, target string
	status            int
}

func (e *errRedirectBlocked) Error() string {
	return fmt.Sprintf("redirect blocked: %s -> %s (%d)", e.original, e.target, e.status)
}

// HTTPFetcher issues GET requests with retry/backoff, a redirect policy,
// and fingerprinted headers.
type HTTPFetcher struct {
	followClient *http.Client
	blockClient  *http.Client
	cfg          HTTPConfig
}

// NewHTTPFetcher builds an HTTPFetcher.
func NewHTTPFetcher(cfg HTTPConfig) *HTTPFetcher {
	cfg.defaults()
	f := &HTTPFetcher{cfg: cfg}
	f.followClient = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			if err := cfg.URLValidator(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
	f.blockClient = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

func (f *HTTPFetcher) CanFetch(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch implements the HTTP fetcher: retry on transient failure with
// exponential backoff, RedirectEncountered when FollowRedirects=false and
// the response is a 3xx.
func (f *HTTPFetcher) Fetch(ctx context.Context, source string, opts Options) (*Result, error) {
	if err := f.cfg.URLValidator(source); err != nil {
		return nil, errs.Wrap(errs.FetchFailed, err, "URL blocked")
	}

	client := f.followClient
	if !opts.FollowRedirects {
		client = f.blockClient
	}

	var lastErr error
	lastRetryable := false
	for attempt := 0; attempt < f.cfg.MaxAttempts; attempt++ {
		select {
		case <-opts.Cancel:
			return nil, context.Canceled
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		res, retryable, err := f.attempt(ctx, client, source, opts)
		if err == nil {
			return res, nil
		}
		lastErr = err
		lastRetryable = retryable

		if redir, ok := err.(*errRedirectBlocked); ok {
			return nil, &errs.Error{
				Kind:    errs.RedirectEncountered,
				Message: "redirect encountered with follow_redirects=false",
				Redirect: &errs.RedirectInfo{
					Original: redir.original,
					Target:   redir.target,
					Status:   redir.status,
				},
			}
		}

		if !retryable || attempt+1 >= f.cfg.MaxAttempts {
			break
		}
		f.cfg.Logger.Debug("fetch retry", "source", source, "attempt", attempt, "err", lastErr)
		backoff := f.cfg.BaseBackoff * time.Duration(uint(1)<<uint(attempt))
		select {
		case <-time.After(backoff):
		case <-opts.Cancel:
			return nil, context.Canceled
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, errs.Wrap(errs.FetchFailed, lastErr, "fetch failed after retries").WithRetryable(lastRetryable)
}

func (f *HTTPFetcher) attempt(ctx context.Context, client *http.Client, source string, opts Options) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, false, err
	}
	for k, v := range fingerprintHeaders() {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err // no response: treated as transient
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 && !opts.FollowRedirects {
		return nil, false, &errRedirectBlocked{
			original: source, target: resp.Header.Get("Location"), status: resp.StatusCode,
		}
	}

	if transientStatus[resp.StatusCode] {
		return nil, true, fmt.Errorf("http %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := safety.LimitedReadAll(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return nil, false, err
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if mime == "" {
		mime = "text/html"
	}

	return &Result{
		Bytes:     body,
		MIME:      mime,
		SourceURL: resp.Request.URL.String(),
	}, false, nil
}

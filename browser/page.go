package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RenderOptions controls a single page render.
type RenderOptions struct {
	// InitialHTML is served in place of the network response for SourceURL,
	// so rendering starts from the bytes the fetcher already retrieved
	// rather than re-fetching (and potentially racing a changed page).
	InitialHTML []byte

	// Timeout bounds navigation and the loading-indicator wait. Default 30s.
	Timeout time.Duration
}

func (o *RenderOptions) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
}

// loadingSelectors are checked for visibility after body load; rendering
// waits until none of them are visible (or the timeout elapses).
var loadingSelectors = []string{
	"[class*=loading]", "[class*=spinner]", "[class*=loader]", "[class*=preload]",
	"[id*=loading]", "[id*=spinner]", "[aria-busy=true]",
}

// RenderPage opens a stealth-wrapped tab, serves InitialHTML for sourceURL,
// blocks image/font/media/stylesheet subresources, propagates HTTP basic
// auth embedded in sourceURL to same-origin subresources, waits for body
// and for loading indicators to clear, and returns the serialized HTML.
//
// Rendering errors are returned to the caller, which should proceed with
// the pre-render HTML rather than failing the fetch.
func RenderPage(ctx context.Context, mgr *Manager, sourceURL string, opts RenderOptions) ([]byte, error) {
	opts.defaults()
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	u, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("browser: parse source url: %w", err)
	}
	var basicAuth string
	if u.User != nil {
		password, _ := u.User.Password()
		basicAuth = basicAuthHeader(u.User.Username(), password)
	}
	origin := u.Scheme + "://" + u.Host

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	router := page.HijackRequests()
	defer router.MustStop()

	router.MustAdd("*", func(h *rod.Hijack) {
		reqURL := h.Request.URL().String()
		resType := string(h.Request.Type())

		if reqURL == sourceURL && len(opts.InitialHTML) > 0 {
			h.Response.SetHeader("Content-Type", "text/html; charset=utf-8")
			h.Response.Payload().Body = opts.InitialHTML
			return
		}
		if blockedResourceType(resType) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if basicAuth != "" && strings.HasPrefix(reqURL, origin) && h.Request.Req().Header.Get("Authorization") == "" {
			h.Request.Req().Header.Set("Authorization", basicAuth)
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	navCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(sourceURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", sourceURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser: wait load: %w", err)
	}

	waitForLoadingIndicators(navCtx, page)

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: serialize: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

func blockedResourceType(resType string) bool {
	switch strings.ToLower(resType) {
	case "image", "font", "media", "stylesheet":
		return true
	default:
		return false
	}
}

func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// waitForLoadingIndicators polls until none of loadingSelectors match a
// visible element, or ctx is done.
func waitForLoadingIndicators(ctx context.Context, page *rod.Page) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !anyLoadingIndicatorVisible(page) {
				return
			}
		}
	}
}

func anyLoadingIndicatorVisible(page *rod.Page) bool {
	script := `(selectors) => selectors.some(sel => {
		const els = document.querySelectorAll(sel);
		for (const el of els) {
			const style = window.getComputedStyle(el);
			if (style.display !== 'none' && style.visibility !== 'hidden' && el.offsetParent !== null) {
				return true;
			}
		}
		return false;
	})`
	res, err := page.Eval(script, loadingSelectors)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func noopValidator(_ string) error { return nil }

func TestHTTPFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>hi</html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPConfig{URLValidator: noopValidator})
	res, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: true})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(res.Bytes) != "<html>hi</html>" {
		t.Errorf("body = %q", res.Bytes)
	}
	if res.MIME != "text/html" {
		t.Errorf("mime = %q, want text/html", res.MIME)
	}
}

func TestHTTPFetcher_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPConfig{URLValidator: noopValidator, BaseBackoff: time.Millisecond})
	res, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: true})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(res.Bytes) != "ok" {
		t.Errorf("body = %q", res.Bytes)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestHTTPFetcher_GivesUpOnPersistentTransientFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPConfig{URLValidator: noopValidator, BaseBackoff: time.Millisecond, MaxAttempts: 3})
	_, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: true})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestHTTPFetcher_RedirectEncounteredWhenNotFollowing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPConfig{URLValidator: noopValidator})
	_, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: false})
	if err == nil {
		t.Fatal("expected RedirectEncountered error")
	}
	if !strings.Contains(err.Error(), "redirect_encountered") {
		t.Errorf("err = %v, want redirect_encountered kind", err)
	}
}

func TestHTTPFetcher_CancelAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cancel := make(chan struct{})
	close(cancel)

	f := NewHTTPFetcher(HTTPConfig{URLValidator: noopValidator})
	_, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: true, Cancel: cancel})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

package fetch

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func TestFileFetcher_CanFetch(t *testing.T) {
	f := &FileFetcher{}
	if !f.CanFetch("file:///tmp/x.md") {
		t.Error("should claim file:// URLs")
	}
	if f.CanFetch("https://example.com/x.md") {
		t.Error("should not claim http URLs")
	}
}

func TestFileFetcher_ReadsLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("# Hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	u := (&url.URL{Scheme: "file", Path: path}).String()
	f := &FileFetcher{}
	res, err := f.Fetch(context.Background(), u, Options{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(res.Bytes) != "# Hello" {
		t.Errorf("bytes = %q", res.Bytes)
	}
	if res.MIME != "text/markdown" {
		t.Errorf("mime = %q, want text/markdown", res.MIME)
	}
}

func TestFileFetcher_MissingFile(t *testing.T) {
	f := &FileFetcher{}
	_, err := f.Fetch(context.Background(), "file:///no/such/file.md", Options{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

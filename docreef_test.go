package docreef

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docreef/docreef/dbopen"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db := dbopen.OpenMemory(t)
	cfg := Config{}
	cfg.Defaults()
	e, err := New(cfg, db, fakeEmbedder{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestListLibraries_EmptyInitially(t *testing.T) {
	e := newTestEngine(t)
	libs, err := e.ListLibraries(context.Background())
	if err != nil {
		t.Fatalf("ListLibraries: %v", err)
	}
	if len(libs) != 0 {
		t.Fatalf("expected no libraries indexed, got %v", libs)
	}
}

func TestFetchURL_ReturnsMarkdownWithoutIndexing(t *testing.T) {
	e := newTestEngine(t)

	path := filepath.Join(t.TempDir(), "doc.md")
	content := "# Title\n\nSome docs content describing a widget API.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scratch file: %v", err)
	}

	md, err := e.FetchURL(context.Background(), "file://"+path, true)
	if err != nil {
		t.Fatalf("FetchURL: %v", err)
	}
	if !strings.Contains(md, "Title") {
		t.Fatalf("expected markdown to contain page content, got %q", md)
	}

	libs, err := e.ListLibraries(context.Background())
	if err != nil {
		t.Fatalf("ListLibraries: %v", err)
	}
	if len(libs) != 0 {
		t.Fatalf("FetchURL must not write to the store, got %v", libs)
	}
}

func TestCancelJob_UnknownReturnsError(t *testing.T) {
	e := newTestEngine(t)
	_, _, err := e.CancelJob("missing")
	if err == nil {
		t.Fatal("expected JobNotFound error")
	}
}

func TestListJobs_EmptyInitially(t *testing.T) {
	e := newTestEngine(t)
	jobs := e.ListJobs(nil)
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/docreef/docreef/fetch"
)

func TestRun_HTMLExtractsTitleLinksAndMarkdown(t *testing.T) {
	htmlContent := `<!DOCTYPE html><html><head><title>My Docs</title></head>
	<body>
	<nav class="sidebar">skip me</nav>
	<main>
	<h1>Heading One</h1>
	<p>Some body text with a <a href="/other">relative link</a>.</p>
	</main>
	<footer>copyright</footer>
	</body></html>`

	res := &fetch.Result{
		Bytes:     []byte(htmlContent),
		MIME:      "text/html",
		SourceURL: "https://docs.example.com/page",
	}

	p := New(nil)
	doc, err := p.Run(context.Background(), res, Options{ScrapeMode: ModeFetch})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc.Title != "My Docs" {
		t.Errorf("title = %q, want %q", doc.Title, "My Docs")
	}
	if !strings.Contains(doc.Markdown, "Heading One") {
		t.Errorf("markdown missing heading: %q", doc.Markdown)
	}
	if strings.Contains(doc.Markdown, "skip me") || strings.Contains(doc.Markdown, "copyright") {
		t.Errorf("boilerplate leaked into markdown: %q", doc.Markdown)
	}

	var found bool
	for _, l := range doc.Links {
		if l == "https://docs.example.com/other" {
			found = true
		}
	}
	if !found {
		t.Errorf("links = %v, missing resolved relative link", doc.Links)
	}
}

func TestRun_TitleFallsBackToH1ThenUntitled(t *testing.T) {
	p := New(nil)

	withH1 := &fetch.Result{Bytes: []byte("<html><body><h1>Only Heading</h1></body></html>"), MIME: "text/html", SourceURL: "https://e.com"}
	doc, err := p.Run(context.Background(), withH1, Options{ScrapeMode: ModeFetch})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc.Title != "Only Heading" {
		t.Errorf("title = %q, want fallback to h1", doc.Title)
	}

	bare := &fetch.Result{Bytes: []byte("<html><body><p>no headings</p></body></html>"), MIME: "text/html", SourceURL: "https://e.com"}
	doc2, err := p.Run(context.Background(), bare, Options{ScrapeMode: ModeFetch})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc2.Title != "Untitled" {
		t.Errorf("title = %q, want Untitled", doc2.Title)
	}
}

func TestRun_CallerSelectorsRemoved(t *testing.T) {
	html := `<html><body><div class="promo">buy now</div><p>keep this</p></body></html>`
	res := &fetch.Result{Bytes: []byte(html), MIME: "text/html", SourceURL: "https://e.com"}

	p := New(nil)
	doc, err := p.Run(context.Background(), res, Options{ScrapeMode: ModeFetch, BoilerplateExtra: []string{".promo"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(doc.Markdown, "buy now") {
		t.Errorf("caller selector not stripped: %q", doc.Markdown)
	}
	if !strings.Contains(doc.Markdown, "keep this") {
		t.Errorf("unrelated content dropped: %q", doc.Markdown)
	}
}

func TestRun_MarkdownPassthrough(t *testing.T) {
	res := &fetch.Result{Bytes: []byte("# Already Markdown\n\nbody"), MIME: "text/markdown", SourceURL: "https://e.com/a.md"}
	p := New(nil)
	doc, err := p.Run(context.Background(), res, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc.Title != "Already Markdown" {
		t.Errorf("title = %q", doc.Title)
	}
}

func TestRun_PlaywrightWithoutBrowserRecordsError(t *testing.T) {
	res := &fetch.Result{Bytes: []byte("<html><body><p>x</p></body></html>"), MIME: "text/html", SourceURL: "https://e.com"}
	p := New(nil)
	doc, err := p.Run(context.Background(), res, Options{ScrapeMode: ModePlaywright})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(doc.Errors) == 0 {
		t.Error("expected a recorded render error when no browser is available")
	}
}

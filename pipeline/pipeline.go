// Package pipeline implements the Content Pipeline: the ordered
// render -> parse -> extract title/links -> sanitize -> convert chain
// that turns a single already-fetched page into a Markdown Document.
// Fetching and splitting into chunks are done by the caller.
package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/docreef/docreef/browser"
	"github.com/docreef/docreef/errs"
	"github.com/docreef/docreef/fetch"
)

// ScrapeMode selects how a fetched page is rendered before extraction.
type ScrapeMode string

const (
	ModeFetch      ScrapeMode = "fetch"
	ModePlaywright ScrapeMode = "playwright"
	ModeAuto       ScrapeMode = "auto"
)

// Options controls a single page's run through the pipeline.
type Options struct {
	ScrapeMode       ScrapeMode
	BoilerplateExtra []string // caller-supplied selectors to additionally strip
	Logger           *slog.Logger
}

func (o *Options) defaults() {
	if o.ScrapeMode == "" {
		o.ScrapeMode = ModeAuto
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Document is the pipeline's output for one fetched page.
type Document struct {
	Title    string
	Markdown string
	Links    []string // absolute URLs extracted from the page, unfiltered by scope
	Errors   []string // non-fatal issues encountered (render failures, etc.)
}

// Pipeline converts one fetch.Result into a Document.
type Pipeline struct {
	browsers    *browser.Manager // nil disables rendering (scrape_mode=fetch behaves the same either way)
	mdConverter *converter.Converter
}

// New creates a Pipeline. browsers may be nil; ModePlaywright then falls
// back to ModeFetch behaviour with a recorded error.
func New(browsers *browser.Manager) *Pipeline {
	return &Pipeline{
		browsers: browsers,
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Run executes the full pipeline on a fetched page.
func (p *Pipeline) Run(ctx context.Context, res *fetch.Result, opts Options) (*Document, error) {
	opts.defaults()
	doc := &Document{}

	html := string(res.Bytes)
	if strings.Contains(res.MIME, "html") {
		html = p.render(ctx, res, opts, doc)
	}

	switch {
	case strings.Contains(res.MIME, "html"):
		return p.runHTML(html, res.SourceURL, opts, doc)
	case strings.Contains(res.MIME, "markdown"):
		doc.Markdown = html
		doc.Title = firstHeading(html)
		return doc, nil
	case strings.Contains(res.MIME, "pdf"):
		return p.runPDF(res, doc)
	default:
		doc.Markdown = html
		return doc, nil
	}
}

// render applies the scrape_mode rendering policy, returning the best
// available HTML (rendered if possible, otherwise the original bytes).
func (p *Pipeline) render(ctx context.Context, res *fetch.Result, opts Options, doc *Document) string {
	original := string(res.Bytes)

	wantRender := opts.ScrapeMode == ModePlaywright
	canRender := p.browsers != nil && p.browsers.Available()
	if opts.ScrapeMode == ModeAuto && canRender {
		wantRender = true
	}
	if !wantRender || !canRender {
		if opts.ScrapeMode == ModePlaywright && !canRender {
			doc.Errors = append(doc.Errors, "render: no headless browser available, using pre-render HTML")
		}
		return original
	}

	rendered, err := browser.RenderPage(ctx, p.browsers, res.SourceURL, browser.RenderOptions{
		InitialHTML: res.Bytes,
	})
	if err != nil {
		doc.Errors = append(doc.Errors, "render: "+err.Error())
		return original
	}
	return rendered
}

func (p *Pipeline) runHTML(html, sourceURL string, opts Options, doc *Document) (*Document, error) {
	parsed, err := parseDOM(html)
	if err != nil {
		return nil, errs.Wrap(errs.ProcessingFailed, err, "parse HTML")
	}

	doc.Title = extractTitle(parsed)
	doc.Links = extractLinks(parsed, sourceURL)

	cleaned := sanitize(parsed, opts.BoilerplateExtra)
	doc.Markdown = p.htmlToMarkdown(cleaned, sourceURL)
	return doc, nil
}

func (p *Pipeline) htmlToMarkdown(html, sourceURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	u, _ := url.Parse(sourceURL)
	domain := ""
	if u != nil {
		domain = u.Scheme + "://" + u.Host
	}
	result, err := p.mdConverter.ConvertString(html, converter.WithDomain(domain))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(result)
}

func firstHeading(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return "Untitled"
}

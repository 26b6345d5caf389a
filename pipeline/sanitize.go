package pipeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// boilerplateSelectors are always removed: navigation chrome, ads, and
// overlay/modal content that never belongs in documentation.
var boilerplateSelectors = []string{
	"script", "style", "noscript", "nav", "footer", "header", "aside",
	"[class*=sidebar]", "[class*=cookie]", "[class*=banner]", "[class*=advert]",
	"[class*=popup]", "[class*=modal]", "[role=navigation]", "[role=banner]",
	"[role=complementary]",
}

var sanitizePolicy = bluemonday.UGCPolicy()

// sanitize strips boilerplate nodes (plus any caller-supplied extra
// selectors), then runs the result through an XSS sanitizer before the
// Markdown conversion stage.
func sanitize(doc *html.Node, extra []string) string {
	gq := goquery.NewDocumentFromNode(doc)

	for _, sel := range boilerplateSelectors {
		gq.Find(sel).Remove()
	}
	for _, sel := range extra {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		gq.Find(sel).Remove()
	}

	rendered, err := gq.Html()
	if err != nil {
		rendered = renderNode(doc)
	}
	return sanitizePolicy.Sanitize(rendered)
}

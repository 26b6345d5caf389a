package split

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/extension"
	gtext "github.com/yuin/goldmark/text"
)

// section is one heading/code/table/text block discovered while walking
// the parsed Markdown tree, already carrying its inherited heading path.
type section struct {
	kind    Type
	content string
	lang    string // fenced code language, when kind == TypeCode
	level   int
	path    []string
}

var mdParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// parseSections renders markdown to a tree and walks its body children
// sequentially, maintaining a heading stack so each section inherits the
// deepest enclosing (level, path).
func parseSections(markdown string) []section {
	source := []byte(markdown)
	doc := mdParser.Parse(gtext.NewReader(source))

	var stack []headingFrame
	var out []section

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch n.Kind() {
		case ast.KindHeading:
			h := n.(*ast.Heading)
			title := strings.TrimSpace(string(textContent(h, source)))
			for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, headingFrame{level: h.Level, title: title})
			path := pathOf(stack)
			out = append(out, section{
				kind:    TypeHeading,
				content: title,
				level:   len(path), // stack depth, so level always agrees with len(path)
				path:    path,
			})

		case ast.KindFencedCodeBlock:
			cb := n.(*ast.FencedCodeBlock)
			level, path := currentPath(stack)
			out = append(out, section{
				kind:    TypeCode,
				content: rawLines(n, source),
				lang:    string(cb.Language(source)),
				level:   level,
				path:    path,
			})

		case ast.KindCodeBlock:
			level, path := currentPath(stack)
			out = append(out, section{
				kind:    TypeCode,
				content: rawLines(n, source),
				level:   level,
				path:    path,
			})

		case extast.KindTable:
			level, path := currentPath(stack)
			out = append(out, section{
				kind:    TypeTable,
				content: renderTable(n.(*extast.Table), source),
				level:   level,
				path:    path,
			})

		default:
			raw := strings.TrimSpace(rawLines(n, source))
			if raw == "" {
				continue
			}
			level, path := currentPath(stack)
			out = append(out, section{
				kind:    TypeText,
				content: raw,
				level:   level,
				path:    path,
			})
		}
	}
	return out
}

type headingFrame struct {
	level int
	title string
}

func pathOf(stack []headingFrame) []string {
	path := make([]string, len(stack))
	for i, f := range stack {
		path[i] = f.title
	}
	return path
}

// currentPath reports the inherited (level, path) for a non-heading
// section. level is always len(path) (stack depth), never the raw
// markdown heading level of the enclosing heading, so the two invariants
// the store persists verbatim never diverge even when headings skip
// levels or start below H1.
func currentPath(stack []headingFrame) (level int, path []string) {
	if len(stack) == 0 {
		return 0, nil
	}
	path = pathOf(stack)
	return len(path), path
}

// rawLines concatenates a node's source segments verbatim, preserving the
// original text (including fenced-code content) exactly. Leaf blocks
// (paragraphs, code blocks, ...) carry their own Lines(); container
// blocks (List, ListItem, Blockquote, ...) don't — Lines() is only ever
// populated on the descendants holding actual text — so for those we
// fall back to the source span covering every descendant segment.
func rawLines(n ast.Node, source []byte) string {
	if lines := n.Lines(); lines != nil && lines.Len() > 0 {
		var sb strings.Builder
		for i := 0; i < lines.Len(); i++ {
			sb.Write(lines.At(i).Value(source))
		}
		return sb.String()
	}
	start, end, ok := containerSpan(n)
	if !ok {
		return ""
	}
	return string(source[start:end])
}

// containerSpan walks n's descendants and returns the byte range in the
// original source spanned by every Lines()-bearing node beneath it, for
// reconstructing the raw text of a container node that has no Lines of
// its own.
func containerSpan(n ast.Node) (start, end int, ok bool) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		var cs, ce int
		var cok bool
		if lines := c.Lines(); lines != nil && lines.Len() > 0 {
			cs = lines.At(0).Start
			ce = lines.At(lines.Len() - 1).Stop
			cok = true
		} else {
			cs, ce, cok = containerSpan(c)
		}
		if !cok {
			continue
		}
		if !ok {
			start, end, ok = cs, ce, true
			continue
		}
		if cs < start {
			start = cs
		}
		if ce > end {
			end = ce
		}
	}
	return start, end, ok
}

// renderTable reconstructs a standalone GFM table's source text from its
// parsed cells and column alignments, rather than n.Lines() — the
// delimiter row between the header and body is consumed by goldmark's
// table parser to populate Alignments and leaves no AST node (and thus
// no source span) of its own, so it must be rebuilt rather than sliced.
func renderTable(tbl *extast.Table, source []byte) string {
	var rows []string

	header := tbl.FirstChild()
	var headerCells []string
	if header != nil && header.Kind() == extast.KindTableHeader {
		headerCells = tableCellText(header, source)
	}
	rows = append(rows, "| "+strings.Join(headerCells, " | ")+" |")

	delim := make([]string, len(headerCells))
	for i := range delim {
		align := extast.AlignNone
		if i < len(tbl.Alignments) {
			align = tbl.Alignments[i]
		}
		delim[i] = alignmentMarker(align)
	}
	rows = append(rows, "| "+strings.Join(delim, " | ")+" |")

	var next ast.Node
	if header != nil {
		next = header.NextSibling()
	}
	for n := next; n != nil; n = n.NextSibling() {
		if n.Kind() != extast.KindTableRow {
			continue
		}
		rows = append(rows, "| "+strings.Join(tableCellText(n, source), " | ")+" |")
	}
	return strings.Join(rows, "\n")
}

// tableCellText collects each cell's rendered text from a TableHeader or
// TableRow node, in column order.
func tableCellText(row ast.Node, source []byte) []string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cells = append(cells, strings.TrimSpace(string(textContent(c, source))))
	}
	return cells
}

func alignmentMarker(a extast.Alignment) string {
	switch a {
	case extast.AlignLeft:
		return ":---"
	case extast.AlignRight:
		return "---:"
	case extast.AlignCenter:
		return ":---:"
	default:
		return "---"
	}
}

// textContent collects the literal text of an inline-bearing block node
// (used for heading titles).
func textContent(n ast.Node, source []byte) []byte {
	var sb []byte
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb = append(sb, t.Segment.Value(source)...)
			continue
		}
		sb = append(sb, textContent(c, source)...)
	}
	return sb
}

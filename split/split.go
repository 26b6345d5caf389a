// Package split implements the semantic splitter: it turns a Markdown
// string into a sequence of size-bounded chunks that preserve heading
// hierarchy and code/table boundaries.
//
// The algorithm renders the Markdown into a tree (via goldmark), walks its
// top-level blocks while tracking a heading stack, and dispatches each
// section to a type-specific splitter (text/heading, code, table, or
// JSON-in-code) before falling back to a recursive character splitter
// bounded by a descending separator set.
package split

import (
	"log/slog"
	"strings"
)

// Options bounds chunk sizes. Preferred is the target size recursive
// splitting tries to approach when merging adjacent pieces; Hard is the
// size no emitted chunk may exceed (barring the logged truncation
// fallback).
type Options struct {
	Preferred int
	Hard      int
	Logger    *slog.Logger
}

func (o *Options) defaults() {
	if o.Preferred <= 0 {
		o.Preferred = 1000
	}
	if o.Hard <= 0 {
		o.Hard = 2000
	}
	if o.Preferred > o.Hard {
		o.Preferred = o.Hard
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Type is one of the four structural kinds a chunk may carry.
type Type string

const (
	TypeHeading Type = "heading"
	TypeText    Type = "text"
	TypeCode    Type = "code"
	TypeTable   Type = "table"
)

// Section is the location of a chunk within the document's heading
// hierarchy.
type Section struct {
	Level int      // 0..6
	Path  []string // heading titles from root; len(Path) == Level when Level > 0
}

// Chunk is one emitted piece of the split document.
type Chunk struct {
	Content string
	Types   map[Type]bool
	Section Section
}

// descendingSeparators is the recursive character splitter's separator
// set, tried in order from coarsest to finest.
var descendingSeparators = []string{
	"\n\n", "\n", " ", "\t", ".", ",", ";", ":", "-", "(", ")", "[", "]", "{", "}", "",
}

// Split transforms markdown into size-bounded, section-aware chunks.
func Split(markdown string, opts Options) []Chunk {
	opts.defaults()

	secs := parseSections(markdown)
	var chunks []Chunk
	for _, s := range secs {
		pieces := splitSection(s, opts)
		for _, p := range pieces {
			content := strings.TrimSpace(p.content)
			if content == "" {
				continue
			}
			types := map[Type]bool{s.kind: true}
			chunks = append(chunks, Chunk{
				Content: content,
				Types:   types,
				Section: Section{Level: s.level, Path: append([]string(nil), s.path...)},
			})
		}
	}
	return chunks
}

type splitPiece struct {
	content string
}

func splitSection(s section, opts Options) []splitPiece {
	switch s.kind {
	case TypeCode:
		return splitCode(s, opts)
	case TypeTable:
		return splitTable(s, opts)
	default: // text, heading
		return splitText(s.content, opts)
	}
}

// splitText implements the text/heading branch: paragraph split, else line
// split, else recursive character splitting; adjacent small pieces sharing
// a separator are merged up to the preferred bound.
func splitText(content string, opts Options) []splitPiece {
	if len(content) <= opts.Hard {
		return []splitPiece{{content: content}}
	}

	paragraphs := splitKeepSep(content, "\n\n")
	if allFit(paragraphs, opts.Hard) {
		return mergePieces(paragraphs, "\n\n", opts)
	}

	lines := splitKeepSep(content, "\n")
	if allFit(lines, opts.Hard) {
		return mergePieces(lines, "\n", opts)
	}

	parts := recursiveSplit(content, descendingSeparators, opts.Hard, opts.Logger)
	return mergePieces(parts, "", opts)
}

func allFit(parts []string, hard int) bool {
	for _, p := range parts {
		if len(p) > hard {
			return false
		}
	}
	return true
}

// splitKeepSep splits on sep and returns parts without the separator; the
// caller re-joins with the same separator when merging.
func splitKeepSep(s, sep string) []string {
	if sep == "" {
		return []string{s}
	}
	raw := strings.Split(s, sep)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) != "" {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return []string{s}
	}
	return out
}

// mergePieces greedily joins adjacent parts with sep as long as the
// combined length stays within the preferred bound, recursing into the
// next-finer separator for any single part that still exceeds the hard
// bound on its own.
func mergePieces(parts []string, sep string, opts Options) []splitPiece {
	var out []splitPiece
	var acc strings.Builder

	flush := func() {
		if acc.Len() > 0 {
			out = append(out, splitPiece{content: acc.String()})
			acc.Reset()
		}
	}

	for _, p := range parts {
		if len(p) > opts.Hard {
			flush()
			next := nextSeparators(sep)
			for _, sub := range recursiveSplit(p, next, opts.Hard, opts.Logger) {
				out = append(out, splitPiece{content: sub})
			}
			continue
		}
		candidate := p
		if acc.Len() > 0 {
			candidate = acc.String() + sep + p
		}
		if len(candidate) <= opts.Preferred {
			acc.Reset()
			acc.WriteString(candidate)
			continue
		}
		flush()
		acc.WriteString(p)
	}
	flush()
	return out
}

func nextSeparators(sep string) []string {
	for i, s := range descendingSeparators {
		if s == sep && i+1 < len(descendingSeparators) {
			return descendingSeparators[i+1:]
		}
	}
	return descendingSeparators
}

// recursiveSplit applies the descending separator set until every piece
// fits within hard, falling back to last-resort truncation (logged) when
// separators are exhausted.
func recursiveSplit(text string, seps []string, hard int, logger *slog.Logger) []string {
	if len(text) <= hard {
		return []string{text}
	}
	if len(seps) == 0 {
		return truncate(text, hard, logger)
	}

	sep := seps[0]
	var parts []string
	if sep == "" {
		// Last resort before the fallback: split on raw byte boundaries.
		for i := 0; i < len(text); i += hard {
			end := i + hard
			if end > len(text) {
				end = len(text)
			}
			parts = append(parts, text[i:end])
		}
		return parts
	}

	raw := strings.Split(text, sep)
	var out []string
	var acc strings.Builder
	flush := func() {
		if acc.Len() > 0 {
			out = append(out, acc.String())
			acc.Reset()
		}
	}
	for i, p := range raw {
		piece := p
		if i > 0 {
			piece = sep + p
		}
		if len(piece) > hard {
			flush()
			out = append(out, recursiveSplit(piece, seps[1:], hard, logger)...)
			continue
		}
		if acc.Len()+len(piece) <= hard {
			acc.WriteString(piece)
			continue
		}
		flush()
		acc.WriteString(piece)
	}
	flush()
	return out
}

// truncate is the ultimate fallback: it is the only operation that may
// lose characters, and it always logs.
func truncate(text string, hard int, logger *slog.Logger) []string {
	var out []string
	for len(text) > 0 {
		end := hard
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[:end])
		text = text[end:]
	}
	if logger != nil {
		logger.Warn("split: truncation fallback engaged", "hard_bound", hard, "pieces", len(out))
	}
	return out
}

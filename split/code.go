package split

import "strings"

// splitCode implements the code branch of the splitter: split on line
// boundaries, re-wrap each chunk in its language fence. A single line
// that, wrapped, still exceeds the hard bound falls back to the recursive
// character splitter (the MinimumChunkSize condition).
func splitCode(s section, opts Options) []splitPiece {
	if strings.EqualFold(s.lang, "json") {
		return splitJSONCode(s.content, s.lang, opts)
	}

	openFence := "```" + s.lang + "\n"
	const closeFence = "\n```"
	overhead := len(openFence) + len(closeFence)

	hardBudget := opts.Hard - overhead
	prefBudget := opts.Preferred - overhead
	if hardBudget < 1 {
		hardBudget = 1
	}
	if prefBudget < 1 {
		prefBudget = hardBudget
	}

	if len(s.content) <= hardBudget {
		return []splitPiece{{content: openFence + strings.TrimRight(s.content, "\n") + closeFence}}
	}

	lines := splitLinesKeepEnds(s.content)
	var groups []string
	var acc strings.Builder
	flush := func() {
		if acc.Len() > 0 {
			groups = append(groups, acc.String())
			acc.Reset()
		}
	}
	for _, line := range lines {
		if len(line) > hardBudget {
			flush()
			groups = append(groups, recursiveSplit(line, descendingSeparators, hardBudget, opts.Logger)...)
			continue
		}
		if acc.Len()+len(line) <= prefBudget {
			acc.WriteString(line)
			continue
		}
		flush()
		acc.WriteString(line)
	}
	flush()

	pieces := make([]splitPiece, 0, len(groups))
	for _, g := range groups {
		body := strings.TrimRight(g, "\n")
		pieces = append(pieces, splitPiece{content: openFence + body + closeFence})
	}
	return pieces
}

// splitLinesKeepEnds splits text into lines, each retaining its trailing
// newline (except possibly the last), so re-joining reproduces the input
// exactly.
func splitLinesKeepEnds(text string) []string {
	parts := strings.SplitAfter(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

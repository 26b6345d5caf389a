package split

import "strings"

// splitTable implements the table branch of the splitter: split between
// rows, prepending the header row (and its delimiter row) to each chunk so
// every chunk is a valid standalone GFM table.
func splitTable(s section, opts Options) []splitPiece {
	lines := strings.Split(strings.TrimRight(s.content, "\n"), "\n")
	if len(lines) < 3 {
		// Too small to have a header + delimiter + at least one row; emit as-is.
		return []splitPiece{{content: s.content}}
	}
	header := lines[0] + "\n" + lines[1]
	rows := lines[2:]

	overhead := len(header) + 1
	hardBudget := opts.Hard - overhead
	prefBudget := opts.Preferred - overhead
	if hardBudget < 1 {
		hardBudget = 1
	}
	if prefBudget < 1 {
		prefBudget = hardBudget
	}

	var groups []string
	var acc strings.Builder
	flush := func() {
		if acc.Len() > 0 {
			groups = append(groups, acc.String())
			acc.Reset()
		}
	}
	for _, row := range rows {
		if len(row) > hardBudget {
			flush()
			groups = append(groups, recursiveSplit(row, descendingSeparators, hardBudget, opts.Logger)...)
			continue
		}
		candidate := row
		if acc.Len() > 0 {
			candidate = acc.String() + "\n" + row
		}
		if len(candidate) <= prefBudget {
			acc.Reset()
			acc.WriteString(candidate)
			continue
		}
		flush()
		acc.WriteString(row)
	}
	flush()

	pieces := make([]splitPiece, 0, len(groups))
	for _, g := range groups {
		pieces = append(pieces, splitPiece{content: header + "\n" + g})
	}
	return pieces
}

package split

import "strings"

// splitJSONCode implements the JSON-code-block branch of the splitter:
// strip the fence, split the JSON body at object/array/element boundaries
// where possible, then re-wrap each piece in the fence, accounting for the
// fence's overhead against the hard bound.
func splitJSONCode(content, lang string, opts Options) []splitPiece {
	trimmed := strings.TrimSpace(content)
	openFence := "```" + lang + "\n"
	const closeFence = "\n```"
	fenceOverhead := len(openFence) + len(closeFence)

	if len(trimmed) == 0 {
		return nil
	}
	opening, closing := trimmed[:1], ""
	switch opening {
	case "{":
		closing = "}"
	case "[":
		closing = "]"
	default:
		// Not a JSON container at the top level: fall back to line splitting.
		return splitCode(section{kind: TypeCode, content: content, lang: ""}, opts)
	}
	if !strings.HasSuffix(trimmed, closing) {
		return splitCode(section{kind: TypeCode, content: content, lang: ""}, opts)
	}

	wrapOverhead := len(opening) + len(closing)
	hardBudget := opts.Hard - fenceOverhead - wrapOverhead
	prefBudget := opts.Preferred - fenceOverhead - wrapOverhead
	if hardBudget < 1 {
		hardBudget = 1
	}
	if prefBudget < 1 {
		prefBudget = hardBudget
	}

	body := trimmed[1 : len(trimmed)-1]
	if len(opening)+len(body)+len(closing)+fenceOverhead <= opts.Hard {
		return []splitPiece{{content: openFence + trimmed + closeFence}}
	}

	elements := splitTopLevelJSON(body)

	var groups []string
	var acc strings.Builder
	flush := func() {
		if acc.Len() > 0 {
			groups = append(groups, acc.String())
			acc.Reset()
		}
	}
	for _, el := range elements {
		el = strings.TrimSpace(el)
		if el == "" {
			continue
		}
		if len(el) > hardBudget {
			flush()
			// Balance is lost here; this is the documented fallback path.
			groups = append(groups, recursiveSplit(el, descendingSeparators, hardBudget, opts.Logger)...)
			continue
		}
		candidate := el
		if acc.Len() > 0 {
			candidate = acc.String() + "," + el
		}
		if len(candidate) <= prefBudget {
			acc.Reset()
			acc.WriteString(candidate)
			continue
		}
		flush()
		acc.WriteString(el)
	}
	flush()

	pieces := make([]splitPiece, 0, len(groups))
	for _, g := range groups {
		wrapped := openFence + opening + g + closing + closeFence
		pieces = append(pieces, splitPiece{content: wrapped})
	}
	return pieces
}

// splitTopLevelJSON splits a JSON object/array body on commas that occur
// at bracket depth 0 and outside of string literals.
func splitTopLevelJSON(body string) []string {
	var out []string
	depth := 0
	inString := false
	escaped := false
	start := 0
	for i, r := range body {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, body[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, body[start:])
	return out
}

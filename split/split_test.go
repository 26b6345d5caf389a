package split

import (
	"strings"
	"testing"
)

func TestSplit_HeadingHierarchy(t *testing.T) {
	md := "# Top\n\nIntro text.\n\n## Sub\n\nBody text under sub.\n"
	chunks := Split(md, Options{Preferred: 200, Hard: 400})

	var gotHeadings []string
	for _, c := range chunks {
		if c.Types[TypeHeading] {
			gotHeadings = append(gotHeadings, c.Content)
		}
	}
	if len(gotHeadings) != 2 || gotHeadings[0] != "Top" || gotHeadings[1] != "Sub" {
		t.Fatalf("headings = %v, want [Top Sub]", gotHeadings)
	}

	for _, c := range chunks {
		if len(c.Section.Path) != c.Section.Level {
			t.Errorf("chunk %q: len(path)=%d != level=%d", c.Content, len(c.Section.Path), c.Section.Level)
		}
	}
}

func TestSplit_SectionLevelMatchesPathWhenHeadingSkipsH1(t *testing.T) {
	md := "## Sub\n\nBody text under a lone H2.\n"
	chunks := Split(md, Options{Preferred: 200, Hard: 400})
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for _, c := range chunks {
		if c.Section.Level > 0 && len(c.Section.Path) != c.Section.Level {
			t.Errorf("chunk %q: len(path)=%d != level=%d", c.Content, len(c.Section.Path), c.Section.Level)
		}
	}
}

func TestSplit_CodeLanguagePreserved(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, "const x"+string(rune('a'+i%26))+" = 1234567890;")
	}
	code := strings.Join(lines, "\n")
	md := "# Doc\n\n```typescript\n" + code + "\n```\n"

	chunks := Split(md, Options{Preferred: 60, Hard: 100})

	var codeChunks []Chunk
	var reconstructed strings.Builder
	for _, c := range chunks {
		if !c.Types[TypeCode] {
			continue
		}
		codeChunks = append(codeChunks, c)
		if !strings.HasPrefix(c.Content, "```typescript") {
			t.Errorf("chunk missing language fence: %q", c.Content)
		}
		if !strings.HasSuffix(c.Content, "```") {
			t.Errorf("chunk missing closing fence: %q", c.Content)
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(c.Content, "```typescript\n"), "\n```")
		if reconstructed.Len() > 0 {
			reconstructed.WriteString("\n")
		}
		reconstructed.WriteString(inner)
	}
	if len(codeChunks) == 0 {
		t.Fatal("expected at least one code chunk")
	}
	got := strings.ReplaceAll(reconstructed.String(), "\n", "")
	want := strings.ReplaceAll(code, "\n", "")
	if got != want {
		t.Errorf("reconstructed code mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestSplit_TableRowsKeepHeader(t *testing.T) {
	md := "| A | B |\n|---|---|\n| 1 | 2 |\n| 3 | 4 |\n| 5 | 6 |\n"
	chunks := Split(md, Options{Preferred: 10, Hard: 30})

	var tableChunks []Chunk
	for _, c := range chunks {
		if !c.Types[TypeTable] {
			continue
		}
		tableChunks = append(tableChunks, c)
		if !strings.HasPrefix(c.Content, "| A | B |") {
			t.Errorf("table chunk missing header: %q", c.Content)
		}
	}
	if len(tableChunks) == 0 {
		t.Fatal("expected at least one table chunk")
	}
}

func TestSplit_HardBoundRespected(t *testing.T) {
	para := strings.Repeat("word ", 500)
	md := "# T\n\n" + para
	hard := 50
	chunks := Split(md, Options{Preferred: 30, Hard: hard})
	for _, c := range chunks {
		if len(c.Content) > hard {
			t.Errorf("chunk exceeds hard bound %d: len=%d", hard, len(c.Content))
		}
	}
}

func TestSplit_EmptySectionsDropped(t *testing.T) {
	md := "# T\n\n\n\n## S\n\n   \n\nactual content\n"
	chunks := Split(md, Options{Preferred: 200, Hard: 400})
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			t.Errorf("empty chunk emitted")
		}
	}
}

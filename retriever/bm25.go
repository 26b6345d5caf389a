package retriever

import (
	"math"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

// tokenize splits s into lower-cased word tokens using a Unicode
// text-segmentation word boundary algorithm (UAX #29) rather than naive
// whitespace splitting, so hyphenated identifiers, CJK text, and
// punctuation-adjacent terms tokenize the way a real search index would.
// Segments that contain no letter or digit (pure punctuation/whitespace
// boundaries) are dropped.
func tokenize(s string) []string {
	out := make([]string, 0, len(s)/5)
	seg := words.NewSegmenter([]byte(s))
	for seg.Next() {
		tok := seg.Value()
		if !hasWordRune(tok) {
			continue
		}
		out = append(out, strings.ToLower(string(tok)))
	}
	return out
}

func hasWordRune(b []byte) bool {
	for _, r := range string(b) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// bm25Scorer re-ranks a small candidate set by Okapi BM25 over the
// query's tokens against each candidate's tokenized content. Corpus
// statistics (document frequency, average length) are computed over the
// candidate set itself rather than the whole index, avoiding the need
// for a persistent inverted index the Document Store doesn't otherwise
// maintain (there's no FTS table; only the vector index).
type bm25Scorer struct {
	k1, b float64
}

func newBM25Scorer() *bm25Scorer {
	return &bm25Scorer{k1: 1.5, b: 0.75}
}

// score returns one BM25 score per document, aligned by index with docs.
func (s *bm25Scorer) score(queryTerms []string, docs [][]string) []float64 {
	n := len(docs)
	scores := make([]float64, n)
	if n == 0 || len(queryTerms) == 0 {
		return scores
	}

	df := make(map[string]int)
	totalLen := 0
	termFreqs := make([]map[string]int, n)
	for i, doc := range docs {
		totalLen += len(doc)
		tf := make(map[string]int, len(doc))
		for _, t := range doc {
			tf[t]++
		}
		termFreqs[i] = tf
		seen := make(map[string]bool)
		for _, t := range queryTerms {
			if tf[t] > 0 && !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	avgLen := float64(totalLen) / float64(n)

	for i, doc := range docs {
		dl := float64(len(doc))
		tf := termFreqs[i]
		var total float64
		for _, t := range queryTerms {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			d := df[t]
			idf := math.Log(1 + (float64(n)-float64(d)+0.5)/(float64(d)+0.5))
			denom := f + s.k1*(1-s.b+s.b*dl/avgLen)
			total += idf * (f * (s.k1 + 1)) / denom
		}
		scores[i] = total
	}
	return scores
}

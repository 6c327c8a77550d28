// Package search ranks indexed memory entries against a free-text query.
package search

import (
	"sort"

	"github.com/rcliao/geny-memory/internal/chunker"
	"github.com/rcliao/geny-memory/internal/index"
	"github.com/rcliao/geny-memory/internal/model"
)

// Result is a ranked entry with the details that placed it.
type Result struct {
	model.Entry
	Matched   int    `json:"matched_terms"`
	Frequency int    `json:"term_frequency"`
	Excerpt   string `json:"excerpt,omitempty"`
}

type score struct {
	matched int
	freq    int
}

// Rank returns up to k entries from ix ordered by distinct matched query terms,
// then summed term frequency, then newest first, then highest id first.
// A query with no tokens or no matching entries returns an empty slice.
func Rank(ix *index.Index, query string, k int) []Result {
	results := []Result{}
	if k <= 0 {
		return results
	}
	terms := index.QueryTerms(query)
	if len(terms) == 0 {
		return results
	}

	scores := make(map[int64]*score)
	for _, term := range terms {
		for id, tf := range ix.Posting(term) {
			s, ok := scores[id]
			if !ok {
				s = &score{}
				scores[id] = s
			}
			s.matched++
			s.freq += tf
		}
	}

	for id, s := range scores {
		e, ok := ix.Doc(id)
		if !ok {
			continue
		}
		results = append(results, Result{Entry: e, Matched: s.matched, Frequency: s.freq})
	}

	sort.Slice(results, func(i, j int) bool {
		return less(results[i], results[j])
	})
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Excerpt = bestExcerpt(results[i].Text, terms)
	}
	return results
}

func less(a, b Result) bool {
	if a.Matched != b.Matched {
		return a.Matched > b.Matched
	}
	if a.Frequency != b.Frequency {
		return a.Frequency > b.Frequency
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// FromEntries wraps entries as unscored results, preserving order.
func FromEntries(entries []model.Entry) []Result {
	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		results = append(results, Result{Entry: e})
	}
	return results
}

// bestExcerpt returns the chunk of text with the most query-term hits, or ""
// when text fits in a single chunk.
func bestExcerpt(text string, terms []string) string {
	chunks := chunker.Chunk(text, chunker.DefaultOptions())
	if len(chunks) <= 1 {
		return ""
	}

	want := make(map[string]bool, len(terms))
	for _, t := range terms {
		want[t] = true
	}

	best, bestHits := chunks[0].Text, -1
	for _, c := range chunks {
		hits := 0
		for tok, n := range index.TermFrequencies(c.Text) {
			if want[tok] {
				hits += n
			}
		}
		if hits > bestHits {
			best, bestHits = c.Text, hits
		}
	}
	return best
}

func cloneResults(in []Result) []Result {
	out := make([]Result, len(in))
	for i, r := range in {
		out[i] = r
		out[i].Entry = r.Entry.Clone()
	}
	return out
}

package search

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultContextBudget is the character budget used when none is given.
const DefaultContextBudget = 4000

// minPartial is the smallest remainder worth filling with a truncated entry.
const minPartial = 100

// ContextEntry is one packed memory.
type ContextEntry struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Excerpt   bool      `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context block.
type ContextResult struct {
	Query   string         `json:"query"`
	Budget  int            `json:"budget"`
	Used    int            `json:"used"`
	Entries []ContextEntry `json:"entries"`
}

// Pack greedily fills a character budget with results in rank order. An
// entry that does not fit is replaced by its excerpt when that fits; the
// first entry that fits neither is truncated into the remaining space (if at
// least minPartial characters remain) and packing stops.
func Pack(query string, results []Result, budget int) *ContextResult {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	out := &ContextResult{Query: query, Budget: budget, Entries: []ContextEntry{}}

	used := 0
	for _, r := range results {
		remaining := budget - used
		switch {
		case len(r.Text) <= remaining:
			out.Entries = append(out.Entries, ContextEntry{ID: r.ID, Text: r.Text, CreatedAt: r.CreatedAt})
			used += len(r.Text)
			continue
		case r.Excerpt != "" && len(r.Excerpt) <= remaining:
			out.Entries = append(out.Entries, ContextEntry{ID: r.ID, Text: r.Excerpt, CreatedAt: r.CreatedAt, Excerpt: true})
			used += len(r.Excerpt)
			continue
		case remaining >= minPartial:
			text := truncate(r.Text, remaining-3) + "..."
			out.Entries = append(out.Entries, ContextEntry{ID: r.ID, Text: text, CreatedAt: r.CreatedAt, Excerpt: true})
			used += len(text)
		}
		break
	}

	out.Used = used
	return out
}

// String renders the packed entries as a bullet list for prompt injection.
func (c *ContextResult) String() string {
	var b strings.Builder
	for _, e := range c.Entries {
		fmt.Fprintf(&b, "- [%s] %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Text)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

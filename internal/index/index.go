// Package index maintains an in-memory inverted index over memory entries.
//
// An Index is safe for concurrent use. Rebuilds never mutate a live Index:
// Build returns a fresh instance that callers swap in atomically.
package index

import (
	"sort"
	"sync"

	"github.com/rcliao/geny-memory/internal/model"
)

// Index maps normalized terms to the entries containing them.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[int64]int // term -> entry id -> term frequency
	docs     map[int64]model.Entry
	maxID    int64
}

// New returns an empty index.
func New() *Index {
	return &Index{
		postings: make(map[string]map[int64]int),
		docs:     make(map[int64]model.Entry),
	}
}

// Build returns a new index built from entries in the given order.
// Building twice from the same entries yields identical postings.
func Build(entries []model.Entry) *Index {
	ix := New()
	for _, e := range entries {
		ix.add(e)
	}
	return ix
}

// Update adds entry to the index. It reports false, and changes nothing, if
// the entry id is already indexed.
func (ix *Index) Update(entry model.Entry) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.add(entry)
}

func (ix *Index) add(entry model.Entry) bool {
	if _, ok := ix.docs[entry.ID]; ok {
		return false
	}
	ix.docs[entry.ID] = entry.Clone()
	for term, n := range TermFrequencies(entry.Text) {
		p, ok := ix.postings[term]
		if !ok {
			p = make(map[int64]int)
			ix.postings[term] = p
		}
		p[entry.ID] = n
	}
	if entry.ID > ix.maxID {
		ix.maxID = entry.ID
	}
	return true
}

// Lookup returns the ids whose text contains term, in ascending order.
// Term is normalized with the ingest tokenizer; an unseen term yields an empty slice.
func (ix *Index) Lookup(term string) []int64 {
	toks := Tokenize(term)
	if len(toks) != 1 {
		return []int64{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	p := ix.postings[toks[0]]
	ids := make([]int64, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Posting returns a copy of the id -> term frequency map for a normalized term.
func (ix *Index) Posting(term string) map[int64]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	p := ix.postings[term]
	out := make(map[int64]int, len(p))
	for id, n := range p {
		out[id] = n
	}
	return out
}

// Doc returns the indexed entry for id.
func (ix *Index) Doc(id int64) (model.Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.docs[id]
	if !ok {
		return model.Entry{}, false
	}
	return e.Clone(), true
}

// Has reports whether id is indexed.
func (ix *Index) Has(id int64) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.docs[id]
	return ok
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// MaxID returns the highest indexed id, or 0 for an empty index.
func (ix *Index) MaxID() int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.maxID
}

// Since returns the indexed entries with id greater than after, in id order.
func (ix *Index) Since(after int64) []model.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []model.Entry
	for id, e := range ix.docs {
		if id > after {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Postings returns a snapshot of every term's sorted posting list.
func (ix *Index) Postings() map[string][]int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make(map[string][]int64, len(ix.postings))
	for term, p := range ix.postings {
		ids := make([]int64, 0, len(p))
		for id := range p {
			ids = append(ids, id)
		}
		sortIDs(ids)
		out[term] = ids
	}
	return out
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

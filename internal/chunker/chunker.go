// Package chunker splits long memory text into excerpt-sized chunks.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 240
	DefaultMaxSize    = 400
)

// Options configures chunking behavior.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
	}
}

// ChunkResult is one chunk and its position among the chunks of a text.
type ChunkResult struct {
	Seq  int
	Text string
}

// Chunk splits text into chunks. Short text (<= MaxSize) returns a single chunk.
// Chunks break on sentence boundaries where possible and on word boundaries
// when a single sentence exceeds MaxSize.
func Chunk(text string, opts Options) []ChunkResult {
	if opts.TargetSize <= 0 || opts.MaxSize <= 0 {
		opts = DefaultOptions()
	}
	if opts.TargetSize > opts.MaxSize {
		opts.TargetSize = opts.MaxSize
	}

	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	if len(text) <= opts.MaxSize {
		return []ChunkResult{{Seq: 0, Text: text}}
	}

	var pieces []string
	var accum string
	flush := func() {
		if accum != "" {
			pieces = append(pieces, accum)
			accum = ""
		}
	}

	for _, s := range splitSentences(text) {
		if len(s) > opts.MaxSize {
			flush()
			pieces = append(pieces, hardSplit(s, opts)...)
			continue
		}
		if accum == "" {
			accum = s
			continue
		}
		if len(accum)+1+len(s) <= opts.TargetSize {
			accum += " " + s
			continue
		}
		flush()
		accum = s
	}
	flush()

	results := make([]ChunkResult, len(pieces))
	for i, p := range pieces {
		results[i] = ChunkResult{Seq: i, Text: p}
	}
	return results
}

// splitSentences breaks text after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && isSpace(text[i+1]) {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// hardSplit breaks an oversized sentence on word boundaries near TargetSize.
func hardSplit(s string, opts Options) []string {
	var out []string
	var cur []string
	curLen := 0

	for _, w := range strings.Fields(s) {
		// A single word longer than MaxSize is cut on a rune boundary.
		for len(w) > opts.MaxSize {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, " "))
				cur, curLen = nil, 0
			}
			cut := runeCut(w, opts.MaxSize)
			out = append(out, w[:cut])
			w = w[cut:]
		}
		if curLen > 0 && curLen+1+len(w) > opts.TargetSize {
			out = append(out, strings.Join(cur, " "))
			cur, curLen = nil, 0
		}
		if curLen > 0 {
			curLen++
		}
		cur = append(cur, w)
		curLen += len(w)
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// runeCut returns the largest offset <= n that does not split a rune in s,
// and never less than the width of the first rune.
func runeCut(s string, n int) int {
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, cut = utf8.DecodeRuneInString(s)
	}
	return cut
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

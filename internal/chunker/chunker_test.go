package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk_EmptyInput(t *testing.T) {
	result := Chunk("   ", DefaultOptions())
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestChunk_ShortContent(t *testing.T) {
	text := "This is a short memory."
	result := Chunk(text, DefaultOptions())
	if len(result) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(result))
	}
	if result[0].Text != text {
		t.Errorf("expected %q, got %q", text, result[0].Text)
	}
	if result[0].Seq != 0 {
		t.Errorf("expected Seq 0, got %d", result[0].Seq)
	}
}

func TestChunk_SplitsOnSentences(t *testing.T) {
	opts := Options{TargetSize: 120, MaxSize: 200}
	sentence := "Geny walked through Reflection Park and noticed the leaves turning gold."
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 6))

	result := Chunk(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(result))
	}
	for i, c := range result {
		if len(c.Text) > opts.MaxSize {
			t.Errorf("chunk %d exceeds max size: %d", i, len(c.Text))
		}
		if !strings.HasSuffix(c.Text, ".") {
			t.Errorf("chunk %d should end on a sentence boundary, got %q", i, c.Text)
		}
		if c.Seq != i {
			t.Errorf("chunk %d has Seq %d", i, c.Seq)
		}
	}
}

func TestChunk_HardSplitsLongSentence(t *testing.T) {
	opts := Options{TargetSize: 50, MaxSize: 80}
	text := strings.Repeat("word ", 60) // one 300-char sentence, no terminator

	result := Chunk(text, opts)
	if len(result) < 4 {
		t.Fatalf("expected at least 4 chunks, got %d", len(result))
	}
	for i, c := range result {
		if len(c.Text) > opts.MaxSize {
			t.Errorf("chunk %d exceeds max size: %d", i, len(c.Text))
		}
	}
}

func TestChunk_PreservesWords(t *testing.T) {
	opts := Options{TargetSize: 60, MaxSize: 100}
	text := "First thought. Second thought is longer than the first one! Third? " +
		strings.Repeat("filler ", 30) + "End."

	var words []string
	for _, c := range Chunk(text, opts) {
		words = append(words, strings.Fields(c.Text)...)
	}
	if strings.Join(words, " ") != strings.Join(strings.Fields(text), " ") {
		t.Errorf("chunks lost or reordered words")
	}
}

func TestChunk_InvalidOptionsUseDefaults(t *testing.T) {
	text := strings.Repeat("abc. ", 200)
	got := Chunk(text, Options{})
	want := Chunk(text, DefaultOptions())
	if len(got) != len(want) {
		t.Errorf("expected %d chunks with defaults, got %d", len(want), len(got))
	}
}

func TestChunk_LongMultiByteWord(t *testing.T) {
	text := strings.Repeat("记忆", 300)
	result := Chunk(text, DefaultOptions())
	if len(result) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(result))
	}

	var joined strings.Builder
	for _, c := range result {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d is invalid UTF-8", c.Seq)
		}
		if len(c.Text) > DefaultMaxSize {
			t.Errorf("chunk %d exceeds max size: %d", c.Seq, len(c.Text))
		}
		joined.WriteString(c.Text)
	}
	if joined.String() != text {
		t.Error("chunks do not reassemble the original text")
	}
}

func TestChunk_MaxSizeSmallerThanRune(t *testing.T) {
	result := Chunk("ééééé", Options{TargetSize: 1, MaxSize: 1})
	if len(result) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(result))
	}
	for _, c := range result {
		if c.Text != "é" {
			t.Errorf("chunk %d: expected %q, got %q", c.Seq, "é", c.Text)
		}
	}
}

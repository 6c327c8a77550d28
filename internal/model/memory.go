// Package model defines the core memory data types.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entry represents a stored memory entry.
type Entry struct {
	ID        int64          `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	IndexedAt *time.Time     `json:"indexed_at,omitempty"`
}

// Clone returns a copy of e that shares no mutable state with it.
func (e Entry) Clone() Entry {
	out := e
	if e.Metadata != nil {
		out.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	if e.IndexedAt != nil {
		t := *e.IndexedAt
		out.IndexedAt = &t
	}
	return out
}

// NormalizeText trims text and collapses internal whitespace runs to a single space.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// NormalizeMetadata validates that every value is a scalar and returns the
// metadata in the shape it will have after a round trip through storage.
// Nil or empty metadata normalizes to nil.
func NormalizeMetadata(meta map[string]any) (map[string]any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	for k, v := range meta {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: metadata key must not be empty", ErrInvalidInput)
		}
		if !isScalar(v) {
			return nil, fmt.Errorf("%w: metadata %q must be a scalar, got %T", ErrInvalidInput, k, v)
		}
	}

	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrInvalidInput, err)
	}
	out, err := DecodeMetadata(b)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrInvalidInput, err)
	}
	return out, nil
}

// DecodeMetadata parses a JSON metadata object without losing integer
// precision: integers that fit in int64 decode as int64, other numbers as
// float64, and integers too large for int64 stay json.Number.
func DecodeMetadata(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	ResolveNumbers(out)
	return out, nil
}

// ResolveNumbers replaces json.Number values in meta in place, using the same
// rules as DecodeMetadata.
func ResolveNumbers(meta map[string]any) {
	for k, v := range meta {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			meta[k] = i
			continue
		}
		if !strings.ContainsAny(n.String(), ".eE") {
			continue
		}
		if f, err := n.Float64(); err == nil {
			meta[k] = f
		}
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

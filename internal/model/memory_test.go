package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Hello Geny memory!", NormalizeText("  Hello \n\tGeny   memory!  "))
	assert.Equal(t, "", NormalizeText(" \n\t "))
}

func TestNormalizeMetadata(t *testing.T) {
	tests := []struct {
		name    string
		in      map[string]any
		want    map[string]any
		wantErr bool
	}{
		{name: "nil", in: nil, want: nil},
		{name: "empty", in: map[string]any{}, want: nil},
		{
			name: "scalars",
			in:   map[string]any{"source": "smoke", "n": 3, "ok": true, "score": 0.5, "none": nil},
			want: map[string]any{"source": "smoke", "n": int64(3), "ok": true, "score": 0.5, "none": nil},
		},
		{
			name: "large integers",
			in:   map[string]any{"seq": int64(9007199254740993), "big": uint64(18446744073709551615)},
			want: map[string]any{"seq": int64(9007199254740993), "big": json.Number("18446744073709551615")},
		},
		{name: "nested map", in: map[string]any{"x": map[string]any{"y": 1}}, wantErr: true},
		{name: "slice", in: map[string]any{"tags": []string{"a"}}, wantErr: true},
		{name: "blank key", in: map[string]any{" ": "v"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMetadata(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeMetadata(t *testing.T) {
	got, err := DecodeMetadata([]byte(`{"id":9007199254740993,"ratio":1.5,"exp":1e3,"name":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), got["id"])
	assert.Equal(t, 1.5, got["ratio"])
	assert.Equal(t, float64(1000), got["exp"])
	assert.Equal(t, "x", got["name"])

	_, err = DecodeMetadata([]byte(`[1]`))
	assert.Error(t, err)
}

func TestEntryClone(t *testing.T) {
	now := time.Now()
	e := Entry{ID: 1, Text: "x", Metadata: map[string]any{"a": "b"}, IndexedAt: &now}
	c := e.Clone()
	c.Metadata["a"] = "changed"
	*c.IndexedAt = now.Add(time.Hour)

	assert.Equal(t, "b", e.Metadata["a"])
	assert.True(t, e.IndexedAt.Equal(now))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "InvalidInput", Kind(fmt.Errorf("wrap: %w", ErrInvalidInput)))
	assert.Equal(t, "StoreUnavailable", Kind(fmt.Errorf("wrap: %w", ErrStoreUnavailable)))
	assert.Equal(t, "NotFound", Kind(ErrNotFound))
	assert.Equal(t, "MaintenanceCycleFailed", Kind(ErrMaintenanceCycleFailed))
	assert.Equal(t, "CycleInProgress", Kind(ErrCycleInProgress))
	assert.Equal(t, "Internal", Kind(errors.New("boom")))
}

package listing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fundatrack/fundatrack/pkg/listing"
)

func TestFieldStates(t *testing.T) {
	var zero listing.Field[int]
	assert.True(t, zero.IsAbsent())
	assert.False(t, zero.IsNull())
	assert.False(t, zero.IsValue())

	null := listing.Null[int]()
	assert.True(t, null.IsNull())
	assert.False(t, null.IsAbsent())

	val := listing.Value(42)
	assert.True(t, val.IsValue())
	got, ok := val.Get()
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	_, ok = null.Get()
	assert.False(t, ok)

	assert.Equal(t, 7, zero.Or(7))
	assert.Equal(t, 7, null.Or(7))
	assert.Equal(t, 42, val.Or(7))
}

func TestMergeTable(t *testing.T) {
	// The merge table: value overwrites, absent preserves, null preserves.
	tests := []struct {
		name     string
		incoming listing.Field[string]
		want     string
	}{
		{"value overwrites", listing.Value("new"), "new"},
		{"absent preserves", listing.Absent[string](), "stored"},
		{"null preserves", listing.Null[string](), "stored"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, listing.Merge("stored", tt.incoming))
			merged := listing.MergeField(listing.Value("stored"), tt.incoming)
			assert.Equal(t, tt.want, merged.Or(""))
		})
	}
}

func TestMergePtr(t *testing.T) {
	stored := "old"
	got := listing.MergePtr(&stored, listing.Value("new"))
	assert.Equal(t, "new", *got)

	got = listing.MergePtr(&stored, listing.Absent[string]())
	assert.Same(t, &stored, got)

	got = listing.MergePtr[string](nil, listing.Null[string]())
	assert.Nil(t, got)
}

func TestFieldPtrRoundTrip(t *testing.T) {
	v := 120
	f := listing.FromPtr(&v)
	assert.True(t, f.IsValue())
	assert.Equal(t, 120, *f.Ptr())

	// Ptr copies: mutating the result must not touch the field.
	*f.Ptr() = 999
	assert.Equal(t, 120, f.Or(0))

	assert.True(t, listing.FromPtr[int](nil).IsAbsent())
	assert.Nil(t, listing.Null[int]().Ptr())
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareTagsOrdersNumerically(t *testing.T) {
	cache := newTagOrdinalCache()
	cases := []struct {
		a, b string
		want int
	}{
		{"Util-00-09-01", "Util-00-09-02", -1},
		{"Util-00-09-02", "Util-00-09-01", 1},
		{"Util-00-09-01", "Util-00-09-01", 0},
		// Numeric ordering, not lexical: 00-10 > 00-09.
		{"Util-00-10-00", "Util-00-09-99", 1},
		{"Util-01-00-00", "Util-00-99-99", 1},
	}
	for _, tc := range cases {
		got, err := cache.compareTags(tc.a, tc.b)
		require.NoError(t, err, "%s vs %s", tc.a, tc.b)
		assert.Equal(t, tc.want, got, "%s vs %s", tc.a, tc.b)
	}
}

func TestCompareTagsRejectsCrossPackage(t *testing.T) {
	cache := newTagOrdinalCache()
	_, err := cache.compareTags("Util-00-09-01", "Motor-00-09-02")
	require.Error(t, err)
}

func TestIsBranchTag(t *testing.T) {
	assert.False(t, IsBranchTag("Util-00-09-01"))
	assert.True(t, IsBranchTag("Util-00-09-01-05"))
}

func TestTrunkSegmentRevision(t *testing.T) {
	revision, ok := trunkSegmentRevision("trunk-r1234")
	require.True(t, ok)
	assert.Equal(t, int64(1234), revision)

	_, ok = trunkSegmentRevision("Util-00-09-01")
	assert.False(t, ok)
}

package policies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagmigrate/internal/types"
)

func release(name string, timestamp int64) types.ReleaseSnapshot {
	return types.ReleaseSnapshot{
		Release: types.ReleaseInfo{Name: name, Timestamp: timestamp},
	}
}

func TestFilterBackskipsKeepsMonotoneSequence(t *testing.T) {
	kept, dropped := FilterBackskips([]types.ReleaseSnapshot{
		release("21.0.14", 1000),
		release("21.0.15", 2000),
		release("21.0.16", 3000),
	})
	require.Len(t, kept, 3)
	assert.Empty(t, dropped)
}

func TestFilterBackskipsVetoesTimestampRegression(t *testing.T) {
	// An older series built after the newer series took over: applying it
	// would move the branch backwards in time.
	kept, dropped := FilterBackskips([]types.ReleaseSnapshot{
		release("21.0.14", 1000),
		release("21.0.15", 4000),
		release("22.0.1", 3000),
	})
	require.Len(t, dropped, 1)
	assert.Equal(t, "21.0.15", dropped[0].Release)

	var names []string
	for _, snapshot := range kept {
		names = append(names, snapshot.Release.Name)
	}
	assert.Equal(t, []string{"21.0.14", "22.0.1"}, names)
}

func TestFilterBackskipsVetoesOrdinalRegression(t *testing.T) {
	kept, dropped := FilterBackskips([]types.ReleaseSnapshot{
		release("22.0.5", 1000),
		release("21.0.16", 2000),
	})
	require.Len(t, dropped, 1)
	assert.Equal(t, "22.0.5", dropped[0].Release)
	require.Len(t, kept, 1)
	assert.Equal(t, "21.0.16", kept[0].Release.Name)
}

func TestFilterBackskipsIgnoresUnparsableNames(t *testing.T) {
	// Nightly builds have no release ordinal; only the timestamp rule
	// applies to them.
	kept, dropped := FilterBackskips([]types.ReleaseSnapshot{
		release("stable-nightly", 1000),
		release("21.0.16", 2000),
	})
	assert.Empty(t, dropped)
	assert.Len(t, kept, 2)
}

func TestBaselineFromMarkersPicksNewestRelease(t *testing.T) {
	baseline := BaselineFromMarkers("stable", []types.MarkerRef{
		{Name: "import/libs/Util/Util-00-09-01", Commit: "c0"},
		{Name: "release/21.0.14", Commit: "c1"},
		{Name: "release/21.0.15", Commit: "c2"},
		{Name: "nightly/stable/2017-07-14T0250", Commit: "c3"},
		{Name: "nightly/other/2018-01-01T0000", Commit: "c4"},
	})
	assert.Equal(t, "21.0.15", baseline.Release)
	assert.Equal(t, time.Date(2017, 7, 14, 2, 50, 0, 0, time.UTC), baseline.BuildTime,
		"other branches' nightlies must not move the watermark")
}

func TestBaselineBlocksReleaseAtOrBehind(t *testing.T) {
	baseline := ForwardBaseline{Release: "21.0.15"}

	reason, blocked := baseline.Blocks(types.ReleaseInfo{Name: "21.0.14.1", Timestamp: 2000})
	assert.True(t, blocked)
	assert.Contains(t, reason, "21.0.15")

	_, blocked = baseline.Blocks(types.ReleaseInfo{Name: "21.0.15", Timestamp: 2000})
	assert.True(t, blocked)

	_, blocked = baseline.Blocks(types.ReleaseInfo{Name: "21.0.16", Timestamp: 2000})
	assert.False(t, blocked)
}

func TestBaselineBlocksBuildBehindWatermark(t *testing.T) {
	baseline := ForwardBaseline{BuildTime: time.Unix(3000, 0).UTC()}

	_, blocked := baseline.Blocks(types.ReleaseInfo{Name: "stable-nightly", Nightly: true, Timestamp: 2000})
	assert.True(t, blocked)

	_, blocked = baseline.Blocks(types.ReleaseInfo{Name: "stable-nightly", Nightly: true, Timestamp: 4000})
	assert.False(t, blocked)
}

func TestBaselineAdvanceMovesBothWatermarks(t *testing.T) {
	baseline := ForwardBaseline{}
	baseline.Advance(types.ReleaseInfo{Name: "21.0.14", Timestamp: 1000})
	baseline.Advance(types.ReleaseInfo{Name: "stable-nightly", Nightly: true, Timestamp: 2000})
	assert.Equal(t, "21.0.14", baseline.Release)
	assert.Equal(t, time.Unix(2000, 0).UTC(), baseline.BuildTime)

	_, blocked := baseline.Blocks(types.ReleaseInfo{Name: "21.0.14.1", Timestamp: 2500})
	assert.False(t, blocked)
	_, blocked = baseline.Blocks(types.ReleaseInfo{Name: "21.0.14", Timestamp: 2500})
	assert.True(t, blocked)
}

func TestCompareReleaseOrdinals(t *testing.T) {
	assert.Equal(t, -1, CompareReleaseOrdinals("21.0.15", "21.0.16"))
	assert.Equal(t, 1, CompareReleaseOrdinals("22.0.1", "21.9.9"))
	assert.Equal(t, 0, CompareReleaseOrdinals("21.0.15", "21.0.15"))
	assert.Equal(t, 0, CompareReleaseOrdinals("not-a-version", "21.0.15"))
}

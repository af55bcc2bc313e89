package core

import (
	"testing"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagmigrate/internal/types"
)

func snapshot(name string, timestamp int64, tags ...types.PackageTagState) types.ReleaseSnapshot {
	return types.ReleaseSnapshot{
		Release: types.ReleaseInfo{Name: name, Timestamp: timestamp},
		Tags:    tags,
	}
}

func TestDiffEmitsAddedChangedRemoved(t *testing.T) {
	prev := snapshot("21.0.14", 1000,
		types.PackageTagState{Path: "libs/Util", Tag: "Util-00-09-01"},
		types.PackageTagState{Path: "drivers/Motor", Tag: "Motor-01-01-00"},
		types.PackageTagState{Path: "libs/Old", Tag: "Old-02-00-00"},
	)
	next := snapshot("21.0.15", 2000,
		types.PackageTagState{Path: "libs/Util", Tag: "Util-00-09-02", Revision: 210},
		types.PackageTagState{Path: "drivers/Motor", Tag: "Motor-01-01-00"},
		types.PackageTagState{Path: "libs/New", Tag: "New-00-01-00", Revision: 220},
	)

	records, err := NewTagDiffComputer().Diff(prev, next)
	require.NoError(t, err)

	want := []types.TagDiffRecord{
		{Path: "libs/New", NewTag: "New-00-01-00", Revision: 220, Kind: types.ChangeKindAdded},
		{Path: "libs/Old", PrevTag: "Old-02-00-00", Kind: types.ChangeKindRemoved},
		{Path: "libs/Util", PrevTag: "Util-00-09-01", NewTag: "Util-00-09-02", Revision: 210, Kind: types.ChangeKindChanged},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}
}

func TestDiffUnchangedPackagesStaySilent(t *testing.T) {
	prev := snapshot("21.0.14", 1000,
		types.PackageTagState{Path: "libs/Util", Tag: "Util-00-09-01"},
	)
	next := snapshot("21.0.15", 2000,
		types.PackageTagState{Path: "libs/Util", Tag: "Util-00-09-01"},
	)
	records, err := NewTagDiffComputer().Diff(prev, next)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDiffTrunkMovesWithRevision(t *testing.T) {
	prev := snapshot("nightly-1", 1000,
		types.PackageTagState{Path: "libs/Util", Tag: types.TrunkTag, Revision: 100},
	)
	next := snapshot("nightly-2", 2000,
		types.PackageTagState{Path: "libs/Util", Tag: types.TrunkTag, Revision: 150},
	)
	records, err := NewTagDiffComputer().Diff(prev, next)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.ChangeKindChanged, records[0].Kind)
	assert.Equal(t, int64(150), records[0].Revision)

	// Same trunk revision is not a change.
	records, err = NewTagDiffComputer().Diff(next, next)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDiffRejectsDuplicatePackagePaths(t *testing.T) {
	bad := snapshot("21.0.15", 2000,
		types.PackageTagState{Path: "libs/Util", Tag: "Util-00-09-01"},
		types.PackageTagState{Path: "libs/Util", Tag: "Util-00-09-02"},
	)
	_, err := NewTagDiffComputer().Diff(types.ReleaseSnapshot{}, bad)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestDiffSequenceStartsWithAllAdded(t *testing.T) {
	first := snapshot("21.0.14", 1000,
		types.PackageTagState{Path: "libs/Util", Tag: "Util-00-09-01", Revision: 200},
	)
	second := snapshot("21.0.15", 2000,
		types.PackageTagState{Path: "libs/Util", Tag: "Util-00-09-02", Revision: 210},
	)
	diffs, err := NewTagDiffComputer().DiffSequence([]types.ReleaseSnapshot{first, second})
	require.NoError(t, err)
	require.Len(t, diffs, 2)
	require.Len(t, diffs[0].Records, 1)
	assert.Equal(t, types.ChangeKindAdded, diffs[0].Records[0].Kind)
	require.Len(t, diffs[1].Records, 1)
	assert.Equal(t, types.ChangeKindChanged, diffs[1].Records[0].Kind)
}

package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagmigrate/internal/adapters"
	"tagmigrate/internal/types"
)

func importItem(path string, tag string, revision int64) ImportItem {
	return ImportItem{
		State: types.PackageTagState{Path: path, Tag: tag},
		Meta: types.RevisionMeta{
			Revision: revision,
			Author:   "alice",
			Date:     time.Unix(int64(1000)*revision, 0).UTC(),
		},
	}
}

func TestImportCreatesCommitAndMarkerPerPair(t *testing.T) {
	source := newFakeSource()
	source.add("libs/Util", "Util-00-09-01", 200, "alice", time.Unix(2000, 0))
	source.add("drivers/Motor", "Motor-01-01-00", 100, "alice", time.Unix(1000, 0))
	dest := newFakeDest()

	engine := NewImportEngine(source, dest, adapters.NewAuthorMapAdapter("example.org"))
	outcome, err := engine.Run(t.Context(), []ImportItem{
		importItem("drivers/Motor", "Motor-01-01-00", 100),
		importItem("libs/Util", "Util-00-09-01", 200),
	})
	require.NoError(t, err)
	require.Len(t, outcome.Imported, 2)
	require.Len(t, dest.commits, 2)

	// Commit order must follow item order.
	assert.Equal(t, "drivers/Motor tag Motor-01-01-00", dest.commits[0].subject)
	assert.Equal(t, "libs/Util tag Util-00-09-01", dest.commits[1].subject)

	marker := types.ImportMarkerName("drivers/Motor", "Motor-01-01-00", 100)
	assert.Equal(t, dest.commits[0].id, dest.markers[marker])
	assert.True(t, dest.annotated[marker])
	assert.Equal(t, "alice <alice@example.org>", dest.commits[0].meta.Author)
}

func TestImportSkipsMarkedPairs(t *testing.T) {
	source := newFakeSource()
	source.add("libs/Util", "Util-00-09-01", 200, "alice", time.Unix(2000, 0))
	dest := newFakeDest()
	name := types.ImportMarkerName("libs/Util", "Util-00-09-01", 200)
	require.NoError(t, dest.CreateMarker(t.Context(), name, "c9999", true, ""))

	engine := NewImportEngine(source, dest, adapters.NewAuthorMapAdapter(""))
	outcome, err := engine.Run(t.Context(), []ImportItem{
		importItem("libs/Util", "Util-00-09-01", 200),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.AlreadyDone)
	assert.Empty(t, outcome.Imported)
	assert.Empty(t, dest.commits)
}

func TestImportRecoversFromLostMarkerWrite(t *testing.T) {
	source := newFakeSource()
	source.add("libs/Util", "Util-00-09-01", 200, "alice", time.Unix(2000, 0))
	dest := newFakeDest()
	name := types.ImportMarkerName("libs/Util", "Util-00-09-01", 200)
	dest.failMarkerOnce[name] = true

	engine := NewImportEngine(source, dest, adapters.NewAuthorMapAdapter(""))
	items := []ImportItem{importItem("libs/Util", "Util-00-09-01", 200)}

	// First run: commit lands, marker write fails, pair reported skipped.
	outcome, err := engine.Run(t.Context(), items)
	require.NoError(t, err)
	require.Len(t, outcome.Skipped, 1)
	require.Len(t, dest.commits, 1)

	// Second run must attach the marker to the existing commit instead of
	// recommitting.
	outcome, err = engine.Run(t.Context(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Recovered)
	require.Len(t, dest.commits, 1)
	assert.Equal(t, dest.commits[0].id, dest.markers[name])
}

func TestImportFailedPairLeavesNoMarker(t *testing.T) {
	source := newFakeSource()
	source.add("libs/Util", "Util-00-09-01", 200, "alice", time.Unix(2000, 0))
	source.add("libs/Broken", "Broken-00-01-00", 300, "alice", time.Unix(3000, 0))
	source.failing["libs/Broken Broken-00-01-00"] = true
	dest := newFakeDest()

	engine := NewImportEngine(source, dest, adapters.NewAuthorMapAdapter(""))
	outcome, err := engine.Run(t.Context(), []ImportItem{
		importItem("libs/Util", "Util-00-09-01", 200),
		importItem("libs/Broken", "Broken-00-01-00", 300),
	})
	require.NoError(t, err, "per-pair failures must not abort the run")
	require.Len(t, outcome.Imported, 1)
	require.Len(t, outcome.Skipped, 1)
	_, marked := dest.markers[types.ImportMarkerName("libs/Broken", "Broken-00-01-00", 300)]
	assert.False(t, marked, "failed pair must stay unmarked so the next run retries it")
}

func TestImportTrunkSubjectCarriesRevision(t *testing.T) {
	source := newFakeSource()
	source.add("libs/Util", types.TrunkTag, 512, "alice", time.Unix(5000, 0))
	dest := newFakeDest()

	engine := NewImportEngine(source, dest, adapters.NewAuthorMapAdapter(""))
	item := ImportItem{
		State: types.PackageTagState{Path: "libs/Util", Tag: types.TrunkTag, Revision: 512},
		Meta:  types.RevisionMeta{Revision: 512, Author: "alice", Date: time.Unix(5000, 0).UTC()},
	}
	_, err := engine.Run(t.Context(), []ImportItem{item})
	require.NoError(t, err)
	require.Len(t, dest.commits, 1)
	assert.Equal(t, "libs/Util trunk r512", dest.commits[0].subject)
}

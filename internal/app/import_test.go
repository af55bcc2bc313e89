package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagmigrate/internal/core"
	"tagmigrate/internal/types"
)

func limitItem(path string, tag string, revision int64, date time.Time) core.ImportItem {
	return core.ImportItem{
		State: types.PackageTagState{Path: path, Tag: tag},
		Meta:  types.RevisionMeta{Revision: revision, Date: date},
	}
}

func TestApplyImportLimitsTagLimitKeepsNewest(t *testing.T) {
	base := time.Unix(1000, 0).UTC()
	items := []core.ImportItem{
		limitItem("libs/Util", "Util-00-01-00", 100, base),
		limitItem("libs/Util", "Util-00-02-00", 200, base.Add(time.Hour)),
		limitItem("libs/Util", "Util-00-03-00", 300, base.Add(2*time.Hour)),
		limitItem("drivers/Motor", "Motor-01-00-00", 150, base),
	}
	kept, trimmed := applyImportLimits(items, ImportRequest{TagLimit: 2})
	assert.Equal(t, 1, trimmed)

	var tags []string
	for _, item := range kept {
		tags = append(tags, item.State.Tag)
	}
	assert.NotContains(t, tags, "Util-00-01-00", "oldest tag over the limit must go")
	assert.Contains(t, tags, "Util-00-02-00")
	assert.Contains(t, tags, "Util-00-03-00")
	assert.Contains(t, tags, "Motor-01-00-00")
}

func TestApplyImportLimitsAgeCutoffKeepsBoundary(t *testing.T) {
	cutoff := int64(5000)
	items := []core.ImportItem{
		limitItem("libs/Util", "Util-00-01-00", 100, time.Unix(1000, 0).UTC()),
		limitItem("libs/Util", "Util-00-02-00", 200, time.Unix(3000, 0).UTC()),
		limitItem("libs/Util", "Util-00-03-00", 300, time.Unix(7000, 0).UTC()),
	}
	kept, trimmed := applyImportLimits(items, ImportRequest{TagMaxAge: cutoff})
	require.Equal(t, 1, trimmed)

	var tags []string
	for _, item := range kept {
		tags = append(tags, item.State.Tag)
	}
	// The newest pre-cutoff tag survives as the boundary version.
	assert.Equal(t, []string{"Util-00-02-00", "Util-00-03-00"}, tags)
}

func TestApplyImportLimitsNoLimitsPassThrough(t *testing.T) {
	items := []core.ImportItem{
		limitItem("libs/Util", "Util-00-01-00", 100, time.Unix(1000, 0).UTC()),
	}
	kept, trimmed := applyImportLimits(items, ImportRequest{})
	assert.Equal(t, 0, trimmed)
	assert.Len(t, kept, 1)
}

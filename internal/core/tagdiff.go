package core

import (
	"fmt"
	"sort"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"

	"tagmigrate/internal/types"
)

// TagDiffComputer derives minimal per-package change records between
// chronologically adjacent snapshots of one release lineage.
type TagDiffComputer struct{}

func NewTagDiffComputer() TagDiffComputer {
	return TagDiffComputer{}
}

// Diff compares two adjacent snapshots. A record is emitted iff a package's
// tag actually changed; unchanged packages are omitted so diff volume stays
// proportional to churn. An empty prev snapshot marks every package as added.
func (TagDiffComputer) Diff(prev types.ReleaseSnapshot, next types.ReleaseSnapshot) ([]types.TagDiffRecord, error) {
	if err := validateSnapshot(prev); err != nil {
		return nil, err
	}
	if err := validateSnapshot(next); err != nil {
		return nil, err
	}
	prevTags := prev.TagMap()
	nextTags := next.TagMap()

	var records []types.TagDiffRecord
	for _, path := range next.Paths() {
		state := nextTags[path]
		before, existed := prevTags[path]
		switch {
		case !existed:
			records = append(records, types.TagDiffRecord{
				Path:     path,
				NewTag:   state.Tag,
				Revision: state.Revision,
				Kind:     types.ChangeKindAdded,
			})
		case !sameVersion(before, state):
			records = append(records, types.TagDiffRecord{
				Path:     path,
				PrevTag:  before.Tag,
				NewTag:   state.Tag,
				Revision: state.Revision,
				Kind:     types.ChangeKindChanged,
			})
		}
	}
	for _, path := range prev.Paths() {
		if _, stillThere := nextTags[path]; stillThere {
			continue
		}
		before := prevTags[path]
		records = append(records, types.TagDiffRecord{
			Path:     path,
			PrevTag:  before.Tag,
			Revision: before.Revision,
			Kind:     types.ChangeKindRemoved,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})
	return records, nil
}

// DiffSequence produces one TagDiffFile per snapshot transition, earliest
// first. The first snapshot has no predecessor, so all its packages come out
// as added.
func (c TagDiffComputer) DiffSequence(snapshots []types.ReleaseSnapshot) ([]types.TagDiffFile, error) {
	var diffs []types.TagDiffFile
	prev := types.ReleaseSnapshot{}
	for _, snapshot := range snapshots {
		records, err := c.Diff(prev, snapshot)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, types.TagDiffFile{
			Release: snapshot.Release,
			Records: records,
		})
		prev = snapshot
	}
	return diffs, nil
}

// sameVersion treats trunk states as equal only at the same revision; a
// moving trunk is a version change.
func sameVersion(a types.PackageTagState, b types.PackageTagState) bool {
	if a.Tag != b.Tag {
		return false
	}
	if a.IsTrunk() {
		return a.Revision == b.Revision
	}
	return true
}

func validateSnapshot(snapshot types.ReleaseSnapshot) error {
	dupes := snapshot.DuplicatePaths()
	if len(dupes) == 0 {
		return nil
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("snapshot %s has duplicate package paths: %s",
			snapshot.Release.Name, strings.Join(dupes, ", ")))
}

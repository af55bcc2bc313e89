package types

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ImportMarker records that a (package, tag) pair exists as a destination
// commit. Markers are the sole durable truth of import completion.
type ImportMarker struct {
	Path   string `json:"path"`
	Tag    string `json:"tag"`
	Commit string `json:"commit"`
}

// ReleaseMarker records that a branch reached a release at a commit.
type ReleaseMarker struct {
	Branch    string `json:"branch"`
	Release   string `json:"release"`
	Commit    string `json:"commit"`
	Timestamp int64  `json:"timestamp"`
}

// MarkerRef is a raw marker ref in the destination repository.
type MarkerRef struct {
	Name   string
	Commit string
}

// BranchState is the per-package content currently materialized on a branch.
// It is always derived from markers plus history, never hand-edited.
type BranchState struct {
	Branch string
	Head   string
	Tags   map[string]string // package path -> tag segment
}

// RevisionMeta is the source repository's record of one (package, tag).
type RevisionMeta struct {
	Revision int64     `json:"revision"`
	Author   string    `json:"author"`
	Date     time.Time `json:"date"`
	Message  string    `json:"msg,omitempty"`
}

const importMarkerPrefix = "import"

// NightlyStampLayout formats the build time embedded in nightly marker names.
const NightlyStampLayout = "2006-01-02T1504"

// TagSegment names a package version inside a marker ref. Trunk states carry
// their revision, since "trunk" alone does not identify content.
func TagSegment(tag string, revision int64) string {
	if tag == TrunkTag {
		return fmt.Sprintf("%s-r%d", TrunkTag, revision)
	}
	return tag
}

// ImportMarkerName is the marker ref recording that a (package, tag) pair has
// been imported. The full package path keeps same-named leaf packages apart.
func ImportMarkerName(pkgPath string, tag string, revision int64) string {
	return path.Join(importMarkerPrefix, pkgPath, TagSegment(tag, revision))
}

// BranchMarkerName is the marker ref recording that a branch currently
// carries a (package, tag) pair.
func BranchMarkerName(branch string, pkgPath string, tag string, revision int64) string {
	return path.Join(branch, importMarkerPrefix, pkgPath, TagSegment(tag, revision))
}

// BranchMarkerPrefix is the ref namespace of one branch's package markers.
func BranchMarkerPrefix(branch string) string {
	return path.Join(branch, importMarkerPrefix) + "/"
}

// SplitBranchMarker decomposes a branch marker name into package path and tag
// segment. Reports false for refs outside the branch marker namespace.
func SplitBranchMarker(branch string, name string) (pkgPath string, tagSegment string, ok bool) {
	prefix := BranchMarkerPrefix(branch)
	if !strings.HasPrefix(name, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(name, prefix)
	idx := strings.LastIndex(rest, "/")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// ReleaseMarkerName is the ref marking a release on a branch: annotated
// "release/NAME" refs for numbered releases, timestamped "nightly" refs for
// nightly builds.
func ReleaseMarkerName(release ReleaseInfo, branch string) string {
	if release.Nightly {
		stamp := release.BuildTime().Format(NightlyStampLayout)
		return path.Join("nightly", branch, stamp)
	}
	return path.Join("release", release.Name)
}

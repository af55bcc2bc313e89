package types

import (
	"sort"
	"time"
)

// PackageTagState is one package's version within one snapshot. Revision is
// the source repository revision the tag was cut at; zero means "not yet
// resolved against the source".
type PackageTagState struct {
	Path     string `json:"path"`
	Tag      string `json:"tag"`
	Revision int64  `json:"revision,omitempty"`
}

func (s PackageTagState) IsTrunk() bool {
	return s.Tag == TrunkTag
}

// ReleaseInfo describes the release or build a snapshot was captured from.
type ReleaseInfo struct {
	Name      string      `json:"name"`
	Series    string      `json:"series,omitempty"`
	Flavour   string      `json:"flavour,omitempty"`
	Major     string      `json:"major,omitempty"`
	Minor     string      `json:"minor,omitempty"`
	Type      ReleaseType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Nightly   bool        `json:"nightly"`
	Author    string      `json:"author,omitempty"`
}

func (r ReleaseInfo) BuildTime() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// ReleaseSnapshot is the full package/tag content of one release build.
// Snapshots are read-only inputs; the engine never mutates them.
type ReleaseSnapshot struct {
	Release ReleaseInfo       `json:"release"`
	Tags    []PackageTagState `json:"tags"`
}

// DuplicatePaths returns package paths that appear more than once. A snapshot
// with duplicates is malformed and must be rejected, not deduplicated.
func (s ReleaseSnapshot) DuplicatePaths() []string {
	seen := map[string]int{}
	for _, state := range s.Tags {
		seen[state.Path]++
	}
	var dupes []string
	for path, count := range seen {
		if count > 1 {
			dupes = append(dupes, path)
		}
	}
	sort.Strings(dupes)
	return dupes
}

// StateFor returns the tag state for a package path, if present.
func (s ReleaseSnapshot) StateFor(path string) (PackageTagState, bool) {
	for _, state := range s.Tags {
		if state.Path == path {
			return state, true
		}
	}
	return PackageTagState{}, false
}

// Paths returns the sorted package paths present in the snapshot.
func (s ReleaseSnapshot) Paths() []string {
	paths := make([]string, 0, len(s.Tags))
	for _, state := range s.Tags {
		paths = append(paths, state.Path)
	}
	sort.Strings(paths)
	return paths
}

// TagMap returns the snapshot content keyed by package path.
func (s ReleaseSnapshot) TagMap() map[string]PackageTagState {
	out := make(map[string]PackageTagState, len(s.Tags))
	for _, state := range s.Tags {
		out[state.Path] = state
	}
	return out
}

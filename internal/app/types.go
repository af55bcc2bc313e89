package app

import (
	"tagmigrate/internal/core"
	"tagmigrate/internal/policies"
	"tagmigrate/internal/types"
)

type ImportRequest struct {
	SourceRoot    string
	DestDir       string
	SnapshotFiles []string
	DiffFiles     []string
	Packages      []string
	DiscoverRoot  string
	DiscoverVeto  []string

	PathPrefix   string
	IncludeTrunk bool
	TagLimit     int
	TagMaxAge    int64 // unix seconds; 0 means no age cutoff

	CachePath     string
	AuthorMap     string
	AuthorDomain  string
	Branch        string
	LookupWorkers int
}

type ImportResult struct {
	Imported    int
	Recovered   int
	AlreadyDone int
	Skipped     []core.SkippedPair
	Trimmed     int
	Markers     []types.ImportMarker
}

type ReconstructRequest struct {
	DestDir       string
	Branch        string
	SnapshotFiles []string
	BaseSnapshot  string
	ParentAnchor  string

	OnlyForward        bool
	SkipReleaseMarkers bool
	CommitDate         string
	DryRun             bool

	AuthorMap    string
	AuthorDomain string
}

type ReconstructResult struct {
	Applied        []core.SnapshotApplied
	Skipped        []core.SkippedRelease
	Dropped        []policies.DroppedSnapshot
	ReleaseMarkers []types.ReleaseMarker
}

type DiffRequest struct {
	SnapshotFiles []string
	Output        string
}

type DiffResult struct {
	Diffs      []types.TagDiffFile
	OutputPath string
}

type OrderRequest struct {
	SnapshotFiles []string
}

type OrderedSnapshot struct {
	Path      string
	Release   string
	Timestamp int64
}

type OrderResult struct {
	Ordered []OrderedSnapshot
}

type MergeRequest struct {
	TargetFile  string
	SourceFiles []string
	Output      string
}

type MergeResult struct {
	Release    string
	Adopted    []string
	OutputPath string
}

type MarkersRequest struct {
	DestDir string
	Prefix  string
}

type MarkersResult struct {
	Markers []types.MarkerRef
}

package types

type ChangeKind string

const (
	ChangeKindAdded   ChangeKind = "added"
	ChangeKindChanged ChangeKind = "changed"
	ChangeKindRemoved ChangeKind = "removed"
)

type ReleaseType string

const (
	ReleaseTypeBase     ReleaseType = "base"
	ReleaseTypeCache    ReleaseType = "cache"
	ReleaseTypeSnapshot ReleaseType = "snapshot"
)

type CommitDateMode string

const (
	CommitDateNow     CommitDateMode = "now"
	CommitDateRelease CommitDateMode = "release"
	CommitDateAuthor  CommitDateMode = "author"
)

// TrunkTag is the pseudo-tag naming a package's development head in the
// source repository. Trunk states are only unique together with their
// revision number.
const TrunkTag = "trunk"

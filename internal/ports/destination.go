package ports

import (
	"context"
	"time"

	"tagmigrate/internal/types"
)

// CommitMeta carries authorship for one destination commit. A zero
// CommitterDate leaves the committer timestamp at the current time.
type CommitMeta struct {
	Author        string
	Date          time.Time
	CommitterDate time.Time
	Message       string
	AllowEmpty    bool
}

// DestinationPort is the write surface over the destination repository.
// Only one engine instance may mutate a given repository at a time; commit
// order is an externally observable contract.
type DestinationPort interface {
	// EnsureRepo initialises the repository if needed and resets any
	// stale working-tree state from an interrupted run.
	EnsureRepo(ctx context.Context) error

	BranchExists(ctx context.Context, branch string) (bool, error)

	// SwitchBranch checks out branch, creating it (as an orphan with an
	// emptied working tree when orphan is set) if it does not exist.
	SwitchBranch(ctx context.Context, branch string, orphan bool) error

	// BranchFrom creates branch at a commit on parent and checks it out.
	BranchFrom(ctx context.Context, branch string, parent string, commit string) error

	// CommitAtTimestamp resolves the newest commit on branch not younger
	// than ts.
	CommitAtTimestamp(ctx context.Context, branch string, ts time.Time) (string, error)

	// StageFromDir replaces pkgPath's subtree with the contents of dir
	// and stages the result.
	StageFromDir(ctx context.Context, pkgPath string, dir string) error

	// StageFromCommit replaces pkgPath's subtree with its content at an
	// existing commit and stages the result.
	StageFromCommit(ctx context.Context, pkgPath string, commit string) error

	// StageRemoval deletes pkgPath's subtree and stages the removal.
	StageRemoval(ctx context.Context, pkgPath string) error

	HasStagedChanges(ctx context.Context) (bool, error)

	Commit(ctx context.Context, meta CommitMeta) (string, error)

	// Head returns the current head commit id, or empty on an unborn
	// branch.
	Head(ctx context.Context) (string, error)

	// CreateMarker records a marker ref at a commit. Marker creation is
	// append-only; recreating an existing name is an error.
	CreateMarker(ctx context.Context, name string, commit string, annotate bool, message string) error

	DeleteMarker(ctx context.Context, name string) error

	ListMarkers(ctx context.Context, prefix string) ([]types.MarkerRef, error)

	// FindCommitBySubject locates a commit whose subject line matches
	// exactly, anywhere in history. Empty result means no such commit.
	// Used to recover from a marker write that failed after its commit
	// succeeded.
	FindCommitBySubject(ctx context.Context, subject string) (string, error)
}

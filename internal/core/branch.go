package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/policies"
	"tagmigrate/internal/ports"
	"tagmigrate/internal/types"
)

// BranchReconstructor replays an ordered list of release snapshots onto one
// destination branch, building one aggregate commit per snapshot from
// already-imported content. Import must always precede reconstruction for
// every referenced pair.
type BranchReconstructor struct {
	Dest    ports.DestinationPort
	Store   ports.SnapshotStorePort
	Authors ports.AuthorMapPort
}

func NewBranchReconstructor(dest ports.DestinationPort, store ports.SnapshotStorePort, authors ports.AuthorMapPort) BranchReconstructor {
	return BranchReconstructor{Dest: dest, Store: store, Authors: authors}
}

// ReconstructOptions control one reconstruction run.
type ReconstructOptions struct {
	Branch             string
	Anchor             *policies.ParentAnchor
	Base               *types.ReleaseSnapshot
	OnlyForward        bool
	SkipReleaseMarkers bool
	CommitDate         types.CommitDateMode
	DryRun             bool
}

// SnapshotApplied reports one snapshot materialized on the branch.
type SnapshotApplied struct {
	Release  string
	Commit   string
	Updated  int
	Removed  int
	Reverted int
}

// SkippedRelease reports one snapshot that produced no commit.
type SkippedRelease struct {
	Release string
	Reason  string
}

// BranchOutcome summarizes one reconstruction run.
type BranchOutcome struct {
	Applied        []SnapshotApplied
	Skipped        []SkippedRelease
	Dropped        []policies.DroppedSnapshot
	ReleaseMarkers []types.ReleaseMarker
}

type opKind int

const (
	opUpdate opKind = iota
	opRevert
	opRemove
)

type subtreeOp struct {
	kind      opKind
	path      string
	segment   string
	commit    string
	revision  int64
	oldMarker string
}

// Run replays the snapshots in order. Rerunning with the same or an extended
// list applies only the delta: branch state is re-derived from markers, and
// snapshots whose release marker already exists are skipped.
func (r BranchReconstructor) Run(ctx context.Context, snapshots []types.ReleaseSnapshot, opts ReconstructOptions) (BranchOutcome, error) {
	outcome := BranchOutcome{}
	if strings.TrimSpace(opts.Branch) == "" {
		return outcome, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("branch name is required")
	}
	if opts.OnlyForward {
		snapshots, outcome.Dropped = policies.FilterBackskips(snapshots)
	}
	if err := r.Dest.EnsureRepo(ctx); err != nil {
		return outcome, err
	}
	if err := r.seedBranch(ctx, opts); err != nil {
		return outcome, err
	}

	markers, err := r.Dest.ListMarkers(ctx, "")
	if err != nil {
		return outcome, err
	}
	state := newBranchView(opts.Branch, markers)
	baseline := policies.ForwardBaseline{}
	if opts.OnlyForward {
		baseline = policies.BaselineFromMarkers(opts.Branch, markers)
	}

	tagCache := newTagOrdinalCache()
	for _, snapshot := range snapshots {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		release := snapshot.Release
		releaseMarker := types.ReleaseMarkerName(release, opts.Branch)
		if !opts.SkipReleaseMarkers && state.releases[releaseMarker] {
			log.Info().
				Str("release", release.Name).
				Str("marker", releaseMarker).
				Msg("release marker already present, skipping snapshot")
			outcome.Skipped = append(outcome.Skipped, SkippedRelease{
				Release: release.Name,
				Reason:  "release marker already present",
			})
			continue
		}
		if opts.OnlyForward {
			// The branch may already be past this release from an earlier
			// run; the input list alone cannot show that.
			if reason, blocked := baseline.Blocks(release); blocked {
				log.Info().
					Str("release", release.Name).
					Str("reason", reason).
					Msg("forward-only: release is behind the branch head, dropped")
				outcome.Dropped = append(outcome.Dropped, policies.DroppedSnapshot{
					Release: release.Name,
					Reason:  reason,
				})
				continue
			}
		}

		ops, err := r.planSnapshot(snapshot, state, opts, tagCache)
		if err != nil {
			return outcome, err
		}
		if opts.DryRun {
			r.logPlan(release.Name, ops)
			outcome.Applied = append(outcome.Applied, summarize(release.Name, "", ops))
			baseline.Advance(release)
			continue
		}
		commit, err := r.applySnapshot(ctx, snapshot, ops, opts, state)
		if err != nil {
			return outcome, err
		}
		if !opts.SkipReleaseMarkers {
			marker, err := r.markRelease(ctx, release, releaseMarker, commit, opts.Branch)
			if err != nil {
				return outcome, err
			}
			state.releases[releaseMarker] = true
			outcome.ReleaseMarkers = append(outcome.ReleaseMarkers, marker)
		}
		applied := summarize(release.Name, commit, ops)
		log.Info().
			Str("release", release.Name).
			Str("commit", commit).
			Int("updated", applied.Updated).
			Int("removed", applied.Removed).
			Int("reverted", applied.Reverted).
			Msg("snapshot applied to branch")
		outcome.Applied = append(outcome.Applied, applied)
		baseline.Advance(release)
	}
	return outcome, nil
}

// seedBranch switches to the target branch, creating it from the parent
// anchor or as an orphan when it does not exist yet.
func (r BranchReconstructor) seedBranch(ctx context.Context, opts ReconstructOptions) error {
	exists, err := r.Dest.BranchExists(ctx, opts.Branch)
	if err != nil {
		return err
	}
	if exists || opts.Anchor == nil {
		return r.Dest.SwitchBranch(ctx, opts.Branch, true)
	}
	commit, err := opts.Anchor.ResolveCommit(ctx, r.Dest, r.Store)
	if err != nil {
		return err
	}
	return r.Dest.BranchFrom(ctx, opts.Branch, opts.Anchor.Branch, commit)
}

// planSnapshot computes the subtree operations that take the branch from its
// current state to the snapshot's content. Every referenced pair must
// already carry an import marker; a missing marker fails the snapshot before
// any commit is made.
func (r BranchReconstructor) planSnapshot(snapshot types.ReleaseSnapshot, state *branchView, opts ReconstructOptions, tagCache *tagOrdinalCache) ([]subtreeOp, error) {
	var ops []subtreeOp
	var missing []string
	considered := map[string]bool{}

	tags := snapshot.TagMap()
	for _, path := range snapshot.Paths() {
		pkgState := tags[path]
		considered[path] = true
		segment := types.TagSegment(pkgState.Tag, pkgState.Revision)
		current, present := state.tags[path]
		if present && current == segment {
			continue
		}
		if opts.OnlyForward && !pkgState.IsTrunk() && IsBranchTag(pkgState.Tag) {
			log.Info().
				Str("package", path).
				Str("tag", pkgState.Tag).
				Msg("forward-only: branch tags are not imported")
			continue
		}
		if opts.OnlyForward && present && isDowngrade(tagCache, current, segment) {
			log.Info().
				Str("package", path).
				Str("from", current).
				Str("to", segment).
				Msg("forward-only: tag downgrade blocked")
			continue
		}
		importName := types.ImportMarkerName(path, pkgState.Tag, pkgState.Revision)
		commit, imported := state.imports[importName]
		if !imported {
			missing = append(missing, importName)
			continue
		}
		ops = append(ops, subtreeOp{
			kind:      opUpdate,
			path:      path,
			segment:   segment,
			commit:    commit,
			revision:  pkgState.Revision,
			oldMarker: state.markerNames[path],
		})
	}

	removalOps, removalMissing := r.planRemovals(snapshot, state, opts, considered)
	ops = append(ops, removalOps...)
	missing = append(missing, removalMissing...)

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("release %s references pairs that were never imported: %s",
				snapshot.Release.Name, strings.Join(missing, ", ")))
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].revision != ops[j].revision {
			return ops[i].revision < ops[j].revision
		}
		return ops[i].path < ops[j].path
	})
	return ops, nil
}

// planRemovals handles packages on the branch that the snapshot no longer
// mentions. With a base release configured, packages still in the base
// revert to the base version instead of disappearing.
func (r BranchReconstructor) planRemovals(snapshot types.ReleaseSnapshot, state *branchView, opts ReconstructOptions, considered map[string]bool) ([]subtreeOp, []string) {
	var ops []subtreeOp
	var missing []string
	var stale []string
	for path := range state.tags {
		if !considered[path] {
			stale = append(stale, path)
		}
	}
	sort.Strings(stale)
	for _, path := range stale {
		if opts.Base != nil {
			baseState, inBase := opts.Base.StateFor(path)
			if inBase {
				baseSegment := types.TagSegment(baseState.Tag, baseState.Revision)
				if baseSegment == state.tags[path] {
					log.Debug().
						Str("package", path).
						Str("tag", baseSegment).
						Msg("package remains at base release version")
					continue
				}
				importName := types.ImportMarkerName(path, baseState.Tag, baseState.Revision)
				commit, imported := state.imports[importName]
				if !imported {
					missing = append(missing, importName)
					continue
				}
				log.Info().
					Str("package", path).
					Str("tag", baseSegment).
					Msg("package reverts to base release version")
				ops = append(ops, subtreeOp{
					kind:      opRevert,
					path:      path,
					segment:   baseSegment,
					commit:    commit,
					revision:  baseState.Revision,
					oldMarker: state.markerNames[path],
				})
				continue
			}
		}
		log.Info().Str("package", path).Msg("package removed from release")
		ops = append(ops, subtreeOp{
			kind:      opRemove,
			path:      path,
			oldMarker: state.markerNames[path],
		})
	}
	return ops, missing
}

// applySnapshot stages all subtree operations, creates the aggregate commit
// stamped with the snapshot's build time, and rewrites the branch markers.
func (r BranchReconstructor) applySnapshot(ctx context.Context, snapshot types.ReleaseSnapshot, ops []subtreeOp, opts ReconstructOptions, state *branchView) (string, error) {
	for _, op := range ops {
		var err error
		switch op.kind {
		case opRemove:
			err = r.Dest.StageRemoval(ctx, op.path)
		default:
			err = r.Dest.StageFromCommit(ctx, op.path, op.commit)
		}
		if err != nil {
			return "", err
		}
	}

	staged, err := r.Dest.HasStagedChanges(ctx)
	if err != nil {
		return "", err
	}
	commit := ""
	if staged {
		applied := summarize(snapshot.Release.Name, "", ops)
		meta := ports.CommitMeta{
			Author: r.Authors.Resolve(snapshot.Release.Author),
			Date:   snapshot.Release.BuildTime(),
			Message: fmt.Sprintf("Release %s\n\n%d package(s) updated, %d removed, %d reverted",
				snapshot.Release.Name, applied.Updated, applied.Removed, applied.Reverted),
		}
		if opts.CommitDate != types.CommitDateNow {
			meta.CommitterDate = snapshot.Release.BuildTime()
		}
		commit, err = r.Dest.Commit(ctx, meta)
		if err != nil {
			return "", err
		}
	} else {
		log.Info().
			Str("release", snapshot.Release.Name).
			Msg("no content changes for release, marking without commit")
		commit, err = r.Dest.Head(ctx)
		if err != nil {
			return "", err
		}
	}

	for _, op := range ops {
		if op.oldMarker != "" {
			if err := r.Dest.DeleteMarker(ctx, op.oldMarker); err != nil {
				return "", err
			}
		}
		if op.kind == opRemove {
			delete(state.tags, op.path)
			delete(state.markerNames, op.path)
			continue
		}
		name := branchMarkerForSegment(opts.Branch, op.path, op.segment)
		if err := r.Dest.CreateMarker(ctx, name, commit, false, ""); err != nil {
			return "", err
		}
		state.tags[op.path] = op.segment
		state.markerNames[op.path] = name
	}
	return commit, nil
}

// markRelease records the release marker: annotated for numbered releases,
// lightweight for nightlies. An empty commit target means the branch has no
// commits yet; an empty release commit is created so the marker has one.
func (r BranchReconstructor) markRelease(ctx context.Context, release types.ReleaseInfo, name string, commit string, branch string) (types.ReleaseMarker, error) {
	assert.NotEmpty(ctx, name, "release marker name must be set")
	if commit == "" {
		created, err := r.Dest.Commit(ctx, ports.CommitMeta{
			Author:        r.Authors.Resolve(release.Author),
			Date:          release.BuildTime(),
			CommitterDate: release.BuildTime(),
			Message:       fmt.Sprintf("Release %s", release.Name),
			AllowEmpty:    true,
		})
		if err != nil {
			return types.ReleaseMarker{}, err
		}
		commit = created
	}
	annotate := !release.Nightly
	message := ""
	if annotate {
		message = fmt.Sprintf("Tagging release %s", release.Name)
	}
	if err := r.Dest.CreateMarker(ctx, name, commit, annotate, message); err != nil {
		return types.ReleaseMarker{}, err
	}
	return types.ReleaseMarker{
		Branch:    branch,
		Release:   release.Name,
		Commit:    commit,
		Timestamp: release.Timestamp,
	}, nil
}

func (r BranchReconstructor) logPlan(release string, ops []subtreeOp) {
	for _, op := range ops {
		event := log.Info().Str("release", release).Str("package", op.path)
		switch op.kind {
		case opRemove:
			event.Msg("dry run: would remove package")
		case opRevert:
			event.Str("tag", op.segment).Msg("dry run: would revert package")
		default:
			event.Str("tag", op.segment).Msg("dry run: would update package")
		}
	}
}

// branchView is the in-memory projection of the destination markers:
// imported pairs, the branch's current package versions, and release
// markers already made.
type branchView struct {
	imports     map[string]string
	tags        map[string]string
	markerNames map[string]string
	releases    map[string]bool
}

func newBranchView(branch string, markers []types.MarkerRef) *branchView {
	view := &branchView{
		imports:     map[string]string{},
		tags:        map[string]string{},
		markerNames: map[string]string{},
		releases:    map[string]bool{},
	}
	for _, marker := range markers {
		if strings.HasPrefix(marker.Name, "import/") {
			view.imports[marker.Name] = marker.Commit
			continue
		}
		if path, segment, ok := types.SplitBranchMarker(branch, marker.Name); ok {
			view.tags[path] = segment
			view.markerNames[path] = marker.Name
			continue
		}
		if strings.HasPrefix(marker.Name, "release/") || strings.HasPrefix(marker.Name, "nightly/") {
			view.releases[marker.Name] = true
		}
	}
	return view
}

func branchMarkerForSegment(branch string, path string, segment string) string {
	return types.BranchMarkerPrefix(branch) + path + "/" + segment
}

// isDowngrade reports whether moving from the current segment to the new one
// would take the package to an older version. Incomparable segments never
// veto.
func isDowngrade(cache *tagOrdinalCache, current string, next string) bool {
	currentRev, currentTrunk := trunkSegmentRevision(current)
	nextRev, nextTrunk := trunkSegmentRevision(next)
	if currentTrunk || nextTrunk {
		if currentTrunk && nextTrunk {
			return nextRev < currentRev
		}
		return false
	}
	compared, err := cache.compareTags(current, next)
	if err != nil {
		return false
	}
	return compared > 0
}

func summarize(release string, commit string, ops []subtreeOp) SnapshotApplied {
	applied := SnapshotApplied{Release: release, Commit: commit}
	for _, op := range ops {
		switch op.kind {
		case opUpdate:
			applied.Updated++
		case opRemove:
			applied.Removed++
		case opRevert:
			applied.Reverted++
		}
	}
	return applied
}

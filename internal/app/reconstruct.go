package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/core"
	"tagmigrate/internal/policies"
	"tagmigrate/internal/types"
)

// Reconstruct replays release snapshots onto a destination branch, one
// aggregate commit per snapshot. Every referenced pair must already have
// been imported.
func (s Service) Reconstruct(ctx context.Context, req ReconstructRequest) (ReconstructResult, error) {
	destDir := strings.TrimSpace(req.DestDir)
	if destDir == "" {
		return ReconstructResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("destination repository directory is required")
	}
	branch := strings.TrimSpace(req.Branch)
	if branch == "" {
		return ReconstructResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("branch name is required")
	}
	if len(req.SnapshotFiles) == 0 {
		return ReconstructResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one snapshot file is required")
	}
	mode, err := parseCommitDateMode(req.CommitDate)
	if err != nil {
		return ReconstructResult{}, err
	}

	snapshots := make([]types.ReleaseSnapshot, 0, len(req.SnapshotFiles))
	for _, file := range req.SnapshotFiles {
		snapshot, err := s.Store.LoadSnapshot(file)
		if err != nil {
			return ReconstructResult{}, err
		}
		snapshots = append(snapshots, snapshot)
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Release.Timestamp < snapshots[j].Release.Timestamp
	})

	opts := core.ReconstructOptions{
		Branch:             branch,
		OnlyForward:        req.OnlyForward,
		SkipReleaseMarkers: req.SkipReleaseMarkers,
		CommitDate:         mode,
		DryRun:             req.DryRun,
	}
	if anchor := strings.TrimSpace(req.ParentAnchor); anchor != "" {
		parsed, err := policies.ParseParentAnchor(anchor)
		if err != nil {
			return ReconstructResult{}, err
		}
		opts.Anchor = &parsed
	}
	if base := strings.TrimSpace(req.BaseSnapshot); base != "" {
		snapshot, err := s.Store.LoadSnapshot(base)
		if err != nil {
			return ReconstructResult{}, err
		}
		log.Info().
			Str("release", snapshot.Release.Name).
			Msg("base release loaded for revert handling")
		opts.Base = &snapshot
	}

	authors, err := s.NewAuthors(req.AuthorMap, req.AuthorDomain)
	if err != nil {
		return ReconstructResult{}, err
	}
	reconstructor := core.NewBranchReconstructor(s.NewDest(destDir), s.Store, authors)
	outcome, err := reconstructor.Run(ctx, snapshots, opts)
	return ReconstructResult{
		Applied:        outcome.Applied,
		Skipped:        outcome.Skipped,
		Dropped:        outcome.Dropped,
		ReleaseMarkers: outcome.ReleaseMarkers,
	}, err
}

func parseCommitDateMode(value string) (types.CommitDateMode, error) {
	switch types.CommitDateMode(strings.TrimSpace(value)) {
	case "", types.CommitDateRelease:
		return types.CommitDateRelease, nil
	case types.CommitDateNow:
		return types.CommitDateNow, nil
	case types.CommitDateAuthor:
		return types.CommitDateAuthor, nil
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("commit date mode %q is not one of now, release, author", value))
}

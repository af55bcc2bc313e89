package app

import (
	"context"
	"sort"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/core"
	"tagmigrate/internal/types"
)

// Diff loads a snapshot sequence, orders it by build time and emits one
// tag-diff file per transition. The first snapshot diffs against nothing,
// so all its packages come out as added.
func (s Service) Diff(ctx context.Context, req DiffRequest) (DiffResult, error) {
	if len(req.SnapshotFiles) == 0 {
		return DiffResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one snapshot file is required")
	}
	snapshots, err := s.loadOrdered(req.SnapshotFiles)
	if err != nil {
		return DiffResult{}, err
	}
	diffs, err := core.NewTagDiffComputer().DiffSequence(snapshots)
	if err != nil {
		return DiffResult{}, err
	}
	result := DiffResult{Diffs: diffs}
	if output := strings.TrimSpace(req.Output); output != "" {
		if err := s.Store.SaveTagDiffs(output, diffs); err != nil {
			return DiffResult{}, err
		}
		result.OutputPath = output
	}
	return result, nil
}

// Order sorts snapshot files chronologically by build timestamp.
func (s Service) Order(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if len(req.SnapshotFiles) == 0 {
		return OrderResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one snapshot file is required")
	}
	ordered := make([]OrderedSnapshot, 0, len(req.SnapshotFiles))
	for _, file := range req.SnapshotFiles {
		snapshot, err := s.Store.LoadSnapshot(file)
		if err != nil {
			return OrderResult{}, err
		}
		ordered = append(ordered, OrderedSnapshot{
			Path:      file,
			Release:   snapshot.Release.Name,
			Timestamp: snapshot.Release.Timestamp,
		})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})
	return OrderResult{Ordered: ordered}, nil
}

// Merge folds source snapshots into a target snapshot: packages the target
// does not know are adopted from the sources, packages it already carries are
// never overwritten.
func (s Service) Merge(ctx context.Context, req MergeRequest) (MergeResult, error) {
	target := strings.TrimSpace(req.TargetFile)
	if target == "" {
		return MergeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("target snapshot file is required")
	}
	if len(req.SourceFiles) == 0 {
		return MergeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one source snapshot file is required")
	}
	merged, err := s.Store.LoadSnapshot(target)
	if err != nil {
		return MergeResult{}, err
	}
	known := map[string]bool{}
	for _, state := range merged.Tags {
		known[state.Path] = true
	}
	var adopted []string
	for _, file := range req.SourceFiles {
		snapshot, err := s.Store.LoadSnapshot(file)
		if err != nil {
			return MergeResult{}, err
		}
		for _, state := range snapshot.Tags {
			if known[state.Path] {
				continue
			}
			known[state.Path] = true
			merged.Tags = append(merged.Tags, state)
			adopted = append(adopted, state.Path)
			log.Debug().
				Str("package", state.Path).
				Str("tag", state.Tag).
				Str("from", snapshot.Release.Name).
				Msg("package adopted into merged release")
		}
	}
	sort.Strings(adopted)
	sort.Slice(merged.Tags, func(i, j int) bool {
		return merged.Tags[i].Path < merged.Tags[j].Path
	})

	output := strings.TrimSpace(req.Output)
	if output == "" {
		output = target
	}
	if err := s.Store.SaveSnapshot(output, merged); err != nil {
		return MergeResult{}, err
	}
	return MergeResult{
		Release:    merged.Release.Name,
		Adopted:    adopted,
		OutputPath: output,
	}, nil
}

// Markers lists destination markers, optionally narrowed to a ref prefix.
func (s Service) Markers(ctx context.Context, req MarkersRequest) (MarkersResult, error) {
	destDir := strings.TrimSpace(req.DestDir)
	if destDir == "" {
		return MarkersResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("destination repository directory is required")
	}
	markers, err := s.NewDest(destDir).ListMarkers(ctx, strings.TrimSpace(req.Prefix))
	if err != nil {
		return MarkersResult{}, err
	}
	return MarkersResult{Markers: markers}, nil
}

func (s Service) loadOrdered(files []string) ([]types.ReleaseSnapshot, error) {
	snapshots := make([]types.ReleaseSnapshot, 0, len(files))
	for _, file := range files {
		snapshot, err := s.Store.LoadSnapshot(file)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Release.Timestamp < snapshots[j].Release.Timestamp
	})
	return snapshots, nil
}

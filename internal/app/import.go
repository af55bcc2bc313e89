package app

import (
	"context"
	"strings"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/core"
	"tagmigrate/internal/ports"
	"tagmigrate/internal/types"
)

// Import resolves the requested (package, tag) pairs into revision order and
// imports every pair not yet marked done in the destination repository.
func (s Service) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	sourceRoot := strings.TrimSpace(req.SourceRoot)
	if sourceRoot == "" {
		return ImportResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("source repository root is required")
	}
	destDir := strings.TrimSpace(req.DestDir)
	if destDir == "" {
		return ImportResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("destination repository directory is required")
	}
	source := s.NewSource(sourceRoot)
	dest := s.NewDest(destDir)
	authors, err := s.NewAuthors(req.AuthorMap, req.AuthorDomain)
	if err != nil {
		return ImportResult{}, err
	}

	states, err := s.collectPairs(ctx, source, req)
	if err != nil {
		return ImportResult{}, err
	}
	if prefix := strings.TrimSpace(req.PathPrefix); prefix != "" {
		states = filterByPrefix(states, prefix)
	}
	if len(states) == 0 {
		log.Warn().Msg("no pairs selected for import")
		return ImportResult{}, nil
	}

	cache := types.MetadataCache{}
	if req.CachePath != "" {
		cache, err = s.Store.LoadMetadataCache(req.CachePath)
		if err != nil {
			return ImportResult{}, err
		}
	}

	if err := dest.EnsureRepo(ctx); err != nil {
		return ImportResult{}, err
	}
	markers, err := dest.ListMarkers(ctx, "import/")
	if err != nil {
		return ImportResult{}, err
	}
	done := map[string]string{}
	for _, marker := range markers {
		done[marker.Name] = marker.Commit
	}

	resolver := core.NewOrderingResolver(source, cache)
	if req.LookupWorkers > 0 {
		resolver.Workers = req.LookupWorkers
	}
	items, skipped, alreadyDone, err := resolver.Resolve(ctx, states, done)
	if req.CachePath != "" {
		// The cache is worth keeping even when resolution failed partway.
		if saveErr := s.Store.SaveMetadataCache(req.CachePath, cache); saveErr != nil {
			log.Warn().Err(saveErr).Msg("metadata cache not saved")
		}
	}
	if err != nil {
		return ImportResult{}, err
	}

	items, trimmed := applyImportLimits(items, req)

	engine := core.NewImportEngine(source, dest, authors)
	if req.Branch != "" {
		engine.Branch = req.Branch
	}
	outcome, err := engine.Run(ctx, items)
	result := ImportResult{
		Imported:    len(outcome.Imported),
		Recovered:   outcome.Recovered,
		AlreadyDone: alreadyDone + outcome.AlreadyDone,
		Skipped:     append(skipped, outcome.Skipped...),
		Trimmed:     trimmed,
		Markers:     outcome.Imported,
	}
	return result, err
}

// collectPairs gathers the pair union from every requested input: snapshot
// files, tag-diff files, explicit packages, and source-tree discovery.
func (s Service) collectPairs(ctx context.Context, source ports.SourcePort, req ImportRequest) ([]types.PackageTagState, error) {
	var states []types.PackageTagState

	for _, file := range req.SnapshotFiles {
		snapshot, err := s.Store.LoadSnapshot(file)
		if err != nil {
			return nil, err
		}
		states = append(states, snapshot.Tags...)
	}
	for _, file := range req.DiffFiles {
		diffs, err := s.Store.LoadTagDiffs(file)
		if err != nil {
			return nil, err
		}
		for _, diff := range diffs {
			for _, record := range diff.Records {
				if record.Kind == types.ChangeKindRemoved {
					continue
				}
				states = append(states, types.PackageTagState{
					Path:     record.Path,
					Tag:      record.NewTag,
					Revision: record.Revision,
				})
			}
		}
	}

	packages := append([]string{}, req.Packages...)
	if root := strings.TrimSpace(req.DiscoverRoot); root != "" {
		found, err := source.FindPackages(ctx, root, req.DiscoverVeto)
		if err != nil {
			return nil, err
		}
		log.Info().Int("count", len(found)).Str("root", root).Msg("packages discovered")
		packages = append(packages, found...)
	}
	for _, pkg := range packages {
		tags, err := source.ListTags(ctx, pkg, req.IncludeTrunk)
		if err != nil {
			return nil, err
		}
		for _, tag := range tags {
			states = append(states, types.PackageTagState{Path: pkg, Tag: tag})
		}
	}

	if len(req.SnapshotFiles) == 0 && len(req.DiffFiles) == 0 && len(packages) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("nothing to import: give snapshot files, diff files, packages or a discovery root")
	}
	return states, nil
}

func filterByPrefix(states []types.PackageTagState, prefix string) []types.PackageTagState {
	var kept []types.PackageTagState
	for _, state := range states {
		if strings.HasPrefix(state.Path, prefix) {
			kept = append(kept, state)
		}
	}
	return kept
}

// applyImportLimits trims the resolved sequence per package: at most the
// newest TagLimit pairs, and nothing older than TagMaxAge except the single
// newest pair before the cutoff, kept as the boundary version.
func applyImportLimits(items []core.ImportItem, req ImportRequest) ([]core.ImportItem, int) {
	if req.TagLimit <= 0 && req.TagMaxAge <= 0 {
		return items, 0
	}
	drop := map[int]bool{}

	perPath := map[string][]int{}
	for i, item := range items {
		perPath[item.State.Path] = append(perPath[item.State.Path], i)
	}

	if req.TagMaxAge > 0 {
		cutoff := time.Unix(req.TagMaxAge, 0).UTC()
		for _, indices := range perPath {
			boundary := -1
			for _, i := range indices {
				if items[i].Meta.Date.Before(cutoff) {
					drop[i] = true
					boundary = i // items are revision-ordered, last wins
				}
			}
			if boundary >= 0 {
				delete(drop, boundary)
			}
		}
	}
	if req.TagLimit > 0 {
		for _, indices := range perPath {
			var alive []int
			for _, i := range indices {
				if !drop[i] {
					alive = append(alive, i)
				}
			}
			for len(alive) > req.TagLimit {
				drop[alive[0]] = true
				alive = alive[1:]
			}
		}
	}

	var kept []core.ImportItem
	for i, item := range items {
		if drop[i] {
			log.Debug().
				Str("package", item.State.Path).
				Str("tag", item.State.Tag).
				Msg("pair trimmed by import limits")
			continue
		}
		kept = append(kept, item)
	}
	return kept, len(drop)
}

package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/ports"
	"tagmigrate/internal/types"
)

const defaultLookupWorkers = 8

// ImportItem is one (package, tag) pair bound to its resolved source
// revision record, ready for import.
type ImportItem struct {
	State types.PackageTagState
	Meta  types.RevisionMeta
}

// MarkerName is the import marker ref this item will be recorded under.
func (i ImportItem) MarkerName() string {
	return types.ImportMarkerName(i.State.Path, i.State.Tag, i.Meta.Revision)
}

// CommitSubject is the exact subject line of this item's destination commit.
// Recovery after a lost marker write depends on subject equality.
func (i ImportItem) CommitSubject() string {
	if i.State.IsTrunk() {
		return fmt.Sprintf("%s %s r%d", i.State.Path, types.TrunkTag, i.Meta.Revision)
	}
	return fmt.Sprintf("%s tag %s", i.State.Path, i.State.Tag)
}

// SkippedPair reports one pair left out of a run, with the reason. Skipped
// pairs carry no marker and are retried on the next run.
type SkippedPair struct {
	Path   string
	Tag    string
	Reason string
}

// OrderingResolver turns an unordered union of (package, tag) pairs, possibly
// drawn from overlapping lineages, into one deduplicated sequence ordered by
// true source revision. Revision lookups fan out across workers; results are
// re-serialized before ordering, so the output is deterministic.
type OrderingResolver struct {
	Source  ports.SourcePort
	Cache   types.MetadataCache
	Workers int
}

func NewOrderingResolver(source ports.SourcePort, cache types.MetadataCache) OrderingResolver {
	return OrderingResolver{
		Source:  source,
		Cache:   cache,
		Workers: defaultLookupWorkers,
	}
}

type lookupResult struct {
	state types.PackageTagState
	meta  types.RevisionMeta
	err   error
}

// Resolve deduplicates states, resolves each pair's revision (from the cache
// when possible), filters pairs whose marker already exists in done, and
// returns the import sequence in ascending revision order plus the number of
// requested pairs that were filtered as already imported. Ties break on
// package path, then tag, for determinism.
func (r OrderingResolver) Resolve(ctx context.Context, states []types.PackageTagState, done map[string]string) ([]ImportItem, []SkippedPair, int, error) {
	unique, err := dedupeStates(states)
	if err != nil {
		return nil, nil, 0, err
	}

	var items []ImportItem
	var pending []types.PackageTagState
	var skipped []SkippedPair
	for _, state := range unique {
		if meta, ok := r.Cache.Get(state.Path, cacheKey(state)); ok {
			items = append(items, ImportItem{State: state, Meta: meta})
			continue
		}
		pending = append(pending, state)
	}

	resolved, lookupSkips := r.lookup(ctx, pending)
	if ctx.Err() != nil {
		return nil, nil, 0, ctx.Err()
	}
	items = append(items, resolved...)
	skipped = append(skipped, lookupSkips...)

	for i := range items {
		if items[i].State.IsTrunk() {
			items[i].State.Revision = items[i].Meta.Revision
		}
		r.Cache.Put(items[i].State.Path, cacheKey(items[i].State), items[i].Meta)
	}

	items, alreadyDone := filterDone(items, done)

	sort.Slice(items, func(i, j int) bool {
		if items[i].Meta.Revision != items[j].Meta.Revision {
			return items[i].Meta.Revision < items[j].Meta.Revision
		}
		if items[i].State.Path != items[j].State.Path {
			return items[i].State.Path < items[j].State.Path
		}
		return items[i].State.Tag < items[j].State.Tag
	})
	return items, skipped, alreadyDone, nil
}

// lookup fans revision queries out across a bounded worker pool.
func (r OrderingResolver) lookup(ctx context.Context, pending []types.PackageTagState) ([]ImportItem, []SkippedPair) {
	if len(pending) == 0 {
		return nil, nil
	}
	workerCount := r.Workers
	if workerCount <= 0 {
		workerCount = defaultLookupWorkers
	}
	if len(pending) < workerCount {
		workerCount = len(pending)
	}

	tasks := make(chan types.PackageTagState)
	results := make(chan lookupResult, len(pending))
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for state := range tasks {
				meta, err := r.Source.PathMetadata(ctx, state.Path, state.Tag)
				results <- lookupResult{state: state, meta: meta, err: err}
			}
		}()
	}
	for _, state := range pending {
		tasks <- state
	}
	close(tasks)
	wg.Wait()
	close(results)

	var items []ImportItem
	var skipped []SkippedPair
	for result := range results {
		if result.err != nil {
			log.Warn().
				Str("package", result.state.Path).
				Str("tag", result.state.Tag).
				Err(result.err).
				Msg("revision lookup failed, pair skipped")
			skipped = append(skipped, SkippedPair{
				Path:   result.state.Path,
				Tag:    result.state.Tag,
				Reason: fmt.Sprintf("revision lookup failed: %v", result.err),
			})
			continue
		}
		if result.state.Revision != 0 && !result.state.IsTrunk() &&
			result.state.Revision != result.meta.Revision {
			// A lineage recorded a different revision than the source
			// reports. Surface, never silently resolve.
			skipped = append(skipped, SkippedPair{
				Path: result.state.Path,
				Tag:  result.state.Tag,
				Reason: fmt.Sprintf("recorded revision %d disagrees with source revision %d",
					result.state.Revision, result.meta.Revision),
			})
			continue
		}
		items = append(items, ImportItem{State: result.state, Meta: result.meta})
	}
	return items, skipped
}

// dedupeStates keys pairs by (path, tag); trunk states additionally by
// revision, since trunk content moves. Two lineages claiming different
// revisions for literally the same tag is a consistency error.
func dedupeStates(states []types.PackageTagState) ([]types.PackageTagState, error) {
	type key struct {
		path string
		tag  string
		rev  int64
	}
	seen := map[key]types.PackageTagState{}
	var unique []types.PackageTagState
	for _, state := range states {
		k := key{path: state.Path, tag: state.Tag}
		if state.IsTrunk() {
			k.rev = state.Revision
		}
		previous, dup := seen[k]
		if !dup {
			seen[k] = state
			unique = append(unique, state)
			continue
		}
		if previous.Revision != state.Revision &&
			previous.Revision != 0 && state.Revision != 0 {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf(
					"conflicting revisions for %s tag %s: %d vs %d",
					state.Path, state.Tag, previous.Revision, state.Revision))
		}
		if previous.Revision == 0 && state.Revision != 0 {
			seen[k] = state
			for i := range unique {
				if unique[i].Path == state.Path && unique[i].Tag == state.Tag {
					unique[i] = state
				}
			}
		}
	}
	return unique, nil
}

// filterDone drops items whose marker already exists and reports how many it
// dropped. Markers for pairs outside the request do not count.
func filterDone(items []ImportItem, done map[string]string) ([]ImportItem, int) {
	if len(done) == 0 {
		return items, 0
	}
	var remaining []ImportItem
	filtered := 0
	for _, item := range items {
		if _, imported := done[item.MarkerName()]; imported {
			log.Debug().
				Str("marker", item.MarkerName()).
				Msg("pair already imported, filtered before ordering")
			filtered++
			continue
		}
		remaining = append(remaining, item)
	}
	return remaining, filtered
}

func cacheKey(state types.PackageTagState) string {
	if state.IsTrunk() {
		return types.TagSegment(state.Tag, state.Revision)
	}
	return state.Tag
}

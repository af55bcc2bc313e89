package ports

import "tagmigrate/internal/types"

// SnapshotStorePort persists and reloads the engine's file-based inputs:
// release snapshots, tag-diff files and the source metadata cache.
type SnapshotStorePort interface {
	LoadSnapshot(path string) (types.ReleaseSnapshot, error)
	SaveSnapshot(path string, snapshot types.ReleaseSnapshot) error

	LoadTagDiffs(path string) ([]types.TagDiffFile, error)
	SaveTagDiffs(path string, diffs []types.TagDiffFile) error

	LoadMetadataCache(path string) (types.MetadataCache, error)
	// SaveMetadataCache rewrites the cache, renaming any previous version
	// to a timestamped backup first.
	SaveMetadataCache(path string, cache types.MetadataCache) error
}

// AuthorMapPort resolves source-system committer ids to formatted
// "Name <email>" author strings.
type AuthorMapPort interface {
	Resolve(author string) string
}

package ports

import (
	"context"

	"tagmigrate/internal/types"
)

// SourcePort is the narrow query surface over the source version-control
// system. Implementations must be safe for concurrent readers: revision
// lookups are fanned out by the ordering resolver.
type SourcePort interface {
	// ListTags returns the tag labels recorded for one package, oldest
	// first, optionally including the trunk pseudo-tag.
	ListTags(ctx context.Context, pkgPath string, includeTrunk bool) ([]string, error)

	// PathMetadata resolves a (package, tag) pair to its revision record.
	PathMetadata(ctx context.Context, pkgPath string, tag string) (types.RevisionMeta, error)

	// Export materializes the payload tree of a (package, tag) pair under
	// destDir, stripped of source-control bookkeeping files.
	Export(ctx context.Context, pkgPath string, tag string, destDir string) error

	// FindPackages recursively locates leaf packages beneath root. Path
	// elements named in veto are not descended into.
	FindPackages(ctx context.Context, root string, veto []string) ([]string, error)
}

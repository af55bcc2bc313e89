package adapters

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/types"
)

// SnapshotFileAdapter persists snapshots, tag-diff files and the source
// metadata cache as JSON files.
type SnapshotFileAdapter struct {
	Clock func() time.Time
}

func NewSnapshotFileAdapter() SnapshotFileAdapter {
	return SnapshotFileAdapter{Clock: time.Now}
}

func (a SnapshotFileAdapter) LoadSnapshot(path string) (types.ReleaseSnapshot, error) {
	var snapshot types.ReleaseSnapshot
	if err := readJSON(path, &snapshot); err != nil {
		return types.ReleaseSnapshot{}, err
	}
	if strings.TrimSpace(snapshot.Release.Name) == "" {
		return types.ReleaseSnapshot{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("snapshot %s has no release name", path))
	}
	if dupes := snapshot.DuplicatePaths(); len(dupes) > 0 {
		return types.ReleaseSnapshot{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("snapshot %s has duplicate package paths: %s",
				path, strings.Join(dupes, ", ")))
	}
	return snapshot, nil
}

func (a SnapshotFileAdapter) SaveSnapshot(path string, snapshot types.ReleaseSnapshot) error {
	if dupes := snapshot.DuplicatePaths(); len(dupes) > 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("refusing to save snapshot with duplicate package paths: %s",
				strings.Join(dupes, ", ")))
	}
	return writeJSON(path, snapshot)
}

func (a SnapshotFileAdapter) LoadTagDiffs(path string) ([]types.TagDiffFile, error) {
	var diffs []types.TagDiffFile
	if err := readJSON(path, &diffs); err != nil {
		return nil, err
	}
	return diffs, nil
}

func (a SnapshotFileAdapter) SaveTagDiffs(path string, diffs []types.TagDiffFile) error {
	return writeJSON(path, diffs)
}

func (a SnapshotFileAdapter) LoadMetadataCache(path string) (types.MetadataCache, error) {
	if _, err := os.Stat(path); err != nil {
		// Missing cache means a cold run, not a failure.
		return types.MetadataCache{}, nil
	}
	log.Info().Str("cache", path).Msg("reloading source metadata cache")
	var cache types.MetadataCache
	if err := readJSON(path, &cache); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = types.MetadataCache{}
	}
	return cache, nil
}

func (a SnapshotFileAdapter) SaveMetadataCache(path string, cache types.MetadataCache) error {
	if _, err := os.Stat(path); err == nil {
		backup := path + ".bak." + a.Clock().Format("20060102T1504.05")
		if err := os.Rename(path, backup); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("cannot back up metadata cache %s", path)).
				WithCause(err)
		}
	}
	return writeJSON(path, cache)
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("cannot read %s", path)).
			WithCause(err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("cannot parse %s", path)).
			WithCause(err)
	}
	return nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot encode %s", path)).
			WithCause(err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot write %s", path)).
			WithCause(err)
	}
	return nil
}

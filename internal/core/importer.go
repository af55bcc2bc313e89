package core

import (
	"context"
	"fmt"
	"os"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/ports"
	"tagmigrate/internal/types"
)

// DefaultImportBranch is the dedicated line of history package imports land
// on unless configured otherwise.
const DefaultImportBranch = "master"

// ImportEngine consumes a resolved, ordered sequence of pairs and creates
// exactly one destination commit plus one import marker per pair. Commits
// happen strictly in the resolved order; downstream branch reconstruction
// depends on it.
type ImportEngine struct {
	Source  ports.SourcePort
	Dest    ports.DestinationPort
	Authors ports.AuthorMapPort
	Branch  string
}

func NewImportEngine(source ports.SourcePort, dest ports.DestinationPort, authors ports.AuthorMapPort) ImportEngine {
	return ImportEngine{
		Source:  source,
		Dest:    dest,
		Authors: authors,
		Branch:  DefaultImportBranch,
	}
}

// ImportOutcome summarizes one engine run.
type ImportOutcome struct {
	Imported    []types.ImportMarker
	Recovered   int
	AlreadyDone int
	Skipped     []SkippedPair
}

// Run imports every item not yet marked done. Per-pair failures are reported
// and skipped without aborting the run; since no marker is written for them
// they are retried next time. The run is interruptible between any two
// (commit, marker) units.
func (e ImportEngine) Run(ctx context.Context, items []ImportItem) (ImportOutcome, error) {
	outcome := ImportOutcome{}
	if err := e.Dest.EnsureRepo(ctx); err != nil {
		return outcome, err
	}
	if err := e.Dest.SwitchBranch(ctx, e.branch(), false); err != nil {
		return outcome, err
	}
	markers, err := e.Dest.ListMarkers(ctx, "import/")
	if err != nil {
		return outcome, err
	}
	done := map[string]string{}
	for _, marker := range markers {
		done[marker.Name] = marker.Commit
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			// Durable progress up to here; the next run resumes from
			// the markers.
			return outcome, err
		}
		name := item.MarkerName()
		if _, imported := done[name]; imported {
			outcome.AlreadyDone++
			continue
		}
		marker, recovered, err := e.importOne(ctx, item)
		if err != nil {
			log.Warn().
				Str("package", item.State.Path).
				Str("tag", item.State.Tag).
				Err(err).
				Msg("import failed, pair left unmarked for retry")
			outcome.Skipped = append(outcome.Skipped, SkippedPair{
				Path:   item.State.Path,
				Tag:    item.State.Tag,
				Reason: err.Error(),
			})
			continue
		}
		if recovered {
			outcome.Recovered++
		}
		done[name] = marker.Commit
		outcome.Imported = append(outcome.Imported, marker)
	}
	return outcome, nil
}

// importOne creates the commit and marker for a single pair. If a commit
// with this pair's subject already exists (a previous run died between
// commit and marker), the marker is attached to it instead of recommitting.
func (e ImportEngine) importOne(ctx context.Context, item ImportItem) (types.ImportMarker, bool, error) {
	name := item.MarkerName()
	subject := item.CommitSubject()
	assert.NotEmpty(ctx, name, "import marker name must be set")
	// Recovery matches on the exact subject line.
	assert.NotEmpty(ctx, subject, "import commit subject must be set")

	if existing, err := e.Dest.FindCommitBySubject(ctx, subject); err == nil && existing != "" {
		log.Info().
			Str("package", item.State.Path).
			Str("tag", item.State.Tag).
			Str("commit", existing).
			Msg("commit already present, recovering marker")
		if err := e.Dest.CreateMarker(ctx, name, existing, true, subject); err != nil {
			return types.ImportMarker{}, false, err
		}
		return types.ImportMarker{Path: item.State.Path, Tag: item.State.Tag, Commit: existing}, true, nil
	}

	exportDir, err := os.MkdirTemp("", "tagmigrate-export-")
	if err != nil {
		return types.ImportMarker{}, false, err
	}
	defer os.RemoveAll(exportDir)

	if err := e.Source.Export(ctx, item.State.Path, item.State.Tag, exportDir); err != nil {
		return types.ImportMarker{}, false, err
	}
	if err := e.Dest.StageFromDir(ctx, item.State.Path, exportDir); err != nil {
		return types.ImportMarker{}, false, err
	}

	log.Info().
		Str("package", item.State.Path).
		Str("tag", item.State.Tag).
		Int64("revision", item.Meta.Revision).
		Msg("importing")
	commit, err := e.Dest.Commit(ctx, ports.CommitMeta{
		Author:     e.Authors.Resolve(item.Meta.Author),
		Date:       item.Meta.Date,
		Message:    fmt.Sprintf("%s\n\nsource revision r%d", subject, item.Meta.Revision),
		AllowEmpty: true,
	})
	if err != nil {
		return types.ImportMarker{}, false, err
	}
	if err := e.Dest.CreateMarker(ctx, name, commit, true, subject); err != nil {
		return types.ImportMarker{}, false, err
	}
	return types.ImportMarker{Path: item.State.Path, Tag: item.State.Tag, Commit: commit}, false, nil
}

func (e ImportEngine) branch() string {
	if e.Branch == "" {
		return DefaultImportBranch
	}
	return e.Branch
}

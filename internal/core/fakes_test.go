package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"

	"tagmigrate/internal/ports"
	"tagmigrate/internal/types"
)

// fakeSource serves revision records and exports from in-memory maps.
type fakeSource struct {
	mu      sync.Mutex
	meta    map[string]types.RevisionMeta // "path tag" -> record
	lookups []string
	failing map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		meta:    map[string]types.RevisionMeta{},
		failing: map[string]bool{},
	}
}

func (s *fakeSource) add(path string, tag string, revision int64, author string, date time.Time) {
	s.meta[path+" "+tag] = types.RevisionMeta{
		Revision: revision,
		Author:   author,
		Date:     date,
	}
}

func (s *fakeSource) ListTags(_ context.Context, pkgPath string, includeTrunk bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tags []string
	for key := range s.meta {
		parts := strings.SplitN(key, " ", 2)
		if parts[0] != pkgPath {
			continue
		}
		if parts[1] == types.TrunkTag && !includeTrunk {
			continue
		}
		tags = append(tags, parts[1])
	}
	sort.Strings(tags)
	return tags, nil
}

func (s *fakeSource) PathMetadata(_ context.Context, pkgPath string, tag string) (types.RevisionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pkgPath + " " + tag
	s.lookups = append(s.lookups, key)
	if s.failing[key] {
		return types.RevisionMeta{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("lookup failure injected for " + key)
	}
	meta, ok := s.meta[key]
	if !ok {
		return types.RevisionMeta{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no such pair " + key)
	}
	return meta, nil
}

func (s *fakeSource) Export(_ context.Context, pkgPath string, tag string, destDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pkgPath + " " + tag
	if s.failing[key] {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("export failure injected for " + key)
	}
	if _, ok := s.meta[key]; !ok {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no such pair " + key)
	}
	return os.WriteFile(filepath.Join(destDir, "content.txt"), []byte(key+"\n"), 0644)
}

func (s *fakeSource) FindPackages(context.Context, string, []string) ([]string, error) {
	return nil, nil
}

type fakeCommit struct {
	id      string
	subject string
	meta    ports.CommitMeta
	staged  []string
}

// fakeDest records commits and markers in memory, in order.
type fakeDest struct {
	commits    []fakeCommit
	markers    map[string]string
	annotated  map[string]bool
	branch     string
	branches   map[string]string // branch -> head at creation
	staged     []string
	nextCommit int

	failMarkerOnce map[string]bool
	failStage      map[string]bool
}

func newFakeDest() *fakeDest {
	return &fakeDest{
		markers:        map[string]string{},
		annotated:      map[string]bool{},
		branches:       map[string]string{},
		failMarkerOnce: map[string]bool{},
		failStage:      map[string]bool{},
	}
}

func (d *fakeDest) EnsureRepo(context.Context) error { return nil }

func (d *fakeDest) BranchExists(_ context.Context, branch string) (bool, error) {
	_, ok := d.branches[branch]
	return ok, nil
}

func (d *fakeDest) SwitchBranch(_ context.Context, branch string, _ bool) error {
	if _, ok := d.branches[branch]; !ok {
		d.branches[branch] = ""
	}
	d.branch = branch
	return nil
}

func (d *fakeDest) BranchFrom(_ context.Context, branch string, _ string, commit string) error {
	d.branches[branch] = commit
	d.branch = branch
	return nil
}

func (d *fakeDest) CommitAtTimestamp(_ context.Context, branch string, ts time.Time) (string, error) {
	for i := len(d.commits) - 1; i >= 0; i-- {
		if !d.commits[i].meta.Date.After(ts) {
			return d.commits[i].id, nil
		}
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("no commit on %s at or before %s", branch, ts))
}

func (d *fakeDest) StageFromDir(_ context.Context, pkgPath string, _ string) error {
	if d.failStage[pkgPath] {
		return errbuilder.New().WithCode(errbuilder.CodeInternal).WithMsg("stage failure injected")
	}
	d.staged = append(d.staged, "dir:"+pkgPath)
	return nil
}

func (d *fakeDest) StageFromCommit(_ context.Context, pkgPath string, commit string) error {
	if d.failStage[pkgPath] {
		return errbuilder.New().WithCode(errbuilder.CodeInternal).WithMsg("stage failure injected")
	}
	d.staged = append(d.staged, "commit:"+pkgPath+"@"+commit)
	return nil
}

func (d *fakeDest) StageRemoval(_ context.Context, pkgPath string) error {
	d.staged = append(d.staged, "rm:"+pkgPath)
	return nil
}

func (d *fakeDest) HasStagedChanges(context.Context) (bool, error) {
	return len(d.staged) > 0, nil
}

func (d *fakeDest) Commit(_ context.Context, meta ports.CommitMeta) (string, error) {
	d.nextCommit++
	commit := fakeCommit{
		id:      fmt.Sprintf("c%04d", d.nextCommit),
		subject: strings.SplitN(meta.Message, "\n", 2)[0],
		meta:    meta,
		staged:  d.staged,
	}
	d.staged = nil
	d.commits = append(d.commits, commit)
	return commit.id, nil
}

func (d *fakeDest) Head(context.Context) (string, error) {
	if len(d.commits) == 0 {
		return "", nil
	}
	return d.commits[len(d.commits)-1].id, nil
}

func (d *fakeDest) CreateMarker(_ context.Context, name string, commit string, annotate bool, _ string) error {
	if d.failMarkerOnce[name] {
		delete(d.failMarkerOnce, name)
		return errbuilder.New().WithCode(errbuilder.CodeInternal).WithMsg("marker failure injected")
	}
	if _, exists := d.markers[name]; exists {
		return errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg("marker " + name + " already exists")
	}
	if commit == "" {
		head, _ := d.Head(context.Background())
		commit = head
	}
	d.markers[name] = commit
	d.annotated[name] = annotate
	return nil
}

func (d *fakeDest) DeleteMarker(_ context.Context, name string) error {
	delete(d.markers, name)
	delete(d.annotated, name)
	return nil
}

func (d *fakeDest) ListMarkers(_ context.Context, prefix string) ([]types.MarkerRef, error) {
	var refs []types.MarkerRef
	for name, commit := range d.markers {
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		refs = append(refs, types.MarkerRef{Name: name, Commit: commit})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func (d *fakeDest) FindCommitBySubject(_ context.Context, subject string) (string, error) {
	for i := len(d.commits) - 1; i >= 0; i-- {
		if d.commits[i].subject == subject {
			return d.commits[i].id, nil
		}
	}
	return "", nil
}

func (d *fakeDest) commitByID(id string) (fakeCommit, bool) {
	for _, commit := range d.commits {
		if commit.id == id {
			return commit, true
		}
	}
	return fakeCommit{}, false
}

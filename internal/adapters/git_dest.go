package adapters

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/ports"
	"tagmigrate/internal/types"
)

// GitDestAdapter drives the git command line against the destination
// repository working tree. Markers are stored as git tags, which makes them
// durable, append-only and visible to plain git tooling.
type GitDestAdapter struct {
	Dir    string
	runner commandRunner
}

func NewGitDestAdapter(dir string) *GitDestAdapter {
	return &GitDestAdapter{
		Dir:    dir,
		runner: newCommandRunner(dir),
	}
}

func (a *GitDestAdapter) EnsureRepo(ctx context.Context) error {
	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot create repository directory %s", a.Dir)).
			WithCause(err)
	}
	if _, err := os.Stat(filepath.Join(a.Dir, ".git")); err == nil {
		log.Info().Str("repo", a.Dir).Msg("found existing destination repository")
		// Reset any partial working-tree state from an interrupted run.
		// Committed history and markers are untouched.
		if head, _ := a.Head(ctx); head != "" {
			if _, err := a.runner.runOnce(ctx, "git", "reset", "--hard"); err != nil {
				return wrapGitError("cannot reset destination working tree", err)
			}
		}
		return nil
	}
	log.Info().Str("repo", a.Dir).Msg("initialising destination repository")
	if _, err := a.runner.runOnce(ctx, "git", "init"); err != nil {
		return wrapGitError("cannot initialise destination repository", err)
	}
	return nil
}

func (a *GitDestAdapter) BranchExists(ctx context.Context, branch string) (bool, error) {
	output, err := a.runner.run(ctx, "git", "branch", "--list", branch)
	if err != nil {
		return false, wrapGitError("cannot list branches", err)
	}
	return strings.TrimSpace(output) != "", nil
}

func (a *GitDestAdapter) SwitchBranch(ctx context.Context, branch string, orphan bool) error {
	current, _ := a.runner.runOnce(ctx, "git", "symbolic-ref", "--short", "-q", "HEAD")
	if strings.TrimSpace(current) == branch {
		return nil
	}
	exists, err := a.BranchExists(ctx, branch)
	if err != nil {
		return err
	}
	switch {
	case exists:
		_, err = a.runner.runOnce(ctx, "git", "checkout", branch)
	case !orphan:
		_, err = a.runner.runOnce(ctx, "git", "checkout", "-B", branch)
	default:
		if _, err = a.runner.runOnce(ctx, "git", "checkout", "--orphan", branch); err != nil {
			break
		}
		// An orphan branch starts from an empty tree: clear the working
		// copy and the index left over from the previous head.
		if err = clearWorkingTree(a.Dir); err != nil {
			break
		}
		_, err = a.runner.runOnce(ctx, "git", "rm", "-r", "--cached", "--ignore-unmatch", "--quiet", ".")
	}
	if err != nil {
		return wrapGitError(fmt.Sprintf("cannot switch to branch %s", branch), err)
	}
	return nil
}

func (a *GitDestAdapter) BranchFrom(ctx context.Context, branch string, parent string, commit string) error {
	if _, err := a.runner.runOnce(ctx, "git", "checkout", parent); err != nil {
		return wrapGitError(fmt.Sprintf("cannot check out parent branch %s", parent), err)
	}
	if _, err := a.runner.runOnce(ctx, "git", "checkout", commit); err != nil {
		return wrapGitError(fmt.Sprintf("cannot check out anchor commit %s", commit), err)
	}
	if _, err := a.runner.runOnce(ctx, "git", "checkout", "-b", branch); err != nil {
		return wrapGitError(fmt.Sprintf("cannot create branch %s", branch), err)
	}
	return nil
}

func (a *GitDestAdapter) CommitAtTimestamp(ctx context.Context, branch string, ts time.Time) (string, error) {
	output, err := a.runner.run(ctx, "git", "log", branch,
		"--until", fmt.Sprintf("%d", ts.Unix()), "-n1", "--pretty=format:%H")
	if err != nil {
		return "", wrapGitError(fmt.Sprintf("cannot search branch %s history", branch), err)
	}
	commit := strings.TrimSpace(output)
	if commit == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no commit on %s at or before %s", branch, ts.UTC().Format(time.RFC3339)))
	}
	return commit, nil
}

func (a *GitDestAdapter) StageFromDir(ctx context.Context, pkgPath string, dir string) error {
	target := filepath.Join(a.Dir, filepath.FromSlash(pkgPath))
	if err := os.RemoveAll(target); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot clear subtree %s", pkgPath)).
			WithCause(err)
	}
	if err := copyTree(dir, target); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot copy payload into %s", pkgPath)).
			WithCause(err)
	}
	return a.stage(ctx, pkgPath)
}

func (a *GitDestAdapter) StageFromCommit(ctx context.Context, pkgPath string, commit string) error {
	target := filepath.Join(a.Dir, filepath.FromSlash(pkgPath))
	// Wipe first so files deleted between versions do not survive.
	if err := os.RemoveAll(target); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot clear subtree %s", pkgPath)).
			WithCause(err)
	}
	if _, err := a.runner.runOnce(ctx, "git", "checkout", commit, "--", pkgPath); err != nil {
		return wrapGitError(fmt.Sprintf("cannot restore %s from commit %s", pkgPath, commit), err)
	}
	return a.stage(ctx, pkgPath)
}

func (a *GitDestAdapter) StageRemoval(ctx context.Context, pkgPath string) error {
	target := filepath.Join(a.Dir, filepath.FromSlash(pkgPath))
	if err := os.RemoveAll(target); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot remove subtree %s", pkgPath)).
			WithCause(err)
	}
	return a.stage(ctx, pkgPath)
}

func (a *GitDestAdapter) stage(ctx context.Context, pkgPath string) error {
	if _, err := a.runner.runOnce(ctx, "git", "add", "-A", "--", pkgPath); err != nil {
		return wrapGitError(fmt.Sprintf("cannot stage %s", pkgPath), err)
	}
	return nil
}

func (a *GitDestAdapter) HasStagedChanges(ctx context.Context) (bool, error) {
	output, err := a.runner.runOnce(ctx, "git", "diff", "--name-only", "--staged")
	if err != nil {
		return false, wrapGitError("cannot inspect staged changes", err)
	}
	return strings.TrimSpace(output) != "", nil
}

func (a *GitDestAdapter) Commit(ctx context.Context, meta ports.CommitMeta) (string, error) {
	args := []string{"commit", "-m", meta.Message}
	if meta.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	if meta.Author != "" {
		args = append(args, fmt.Sprintf("--author=%s", meta.Author))
	}
	if !meta.Date.IsZero() {
		args = append(args, fmt.Sprintf("--date=%d", meta.Date.Unix()))
	}
	runner := a.runner
	if !meta.CommitterDate.IsZero() {
		runner.Env = append(runner.Env,
			fmt.Sprintf("GIT_COMMITTER_DATE=%d", meta.CommitterDate.Unix()))
	}
	if _, err := runner.runOnce(ctx, "git", args...); err != nil {
		return "", wrapGitError("commit failed", err)
	}
	return a.Head(ctx)
}

func (a *GitDestAdapter) Head(ctx context.Context) (string, error) {
	output, err := a.runner.runOnce(ctx, "git", "rev-parse", "--quiet", "--verify", "HEAD")
	if err != nil {
		// Unborn branch: no commits yet.
		return "", nil
	}
	return strings.TrimSpace(output), nil
}

func (a *GitDestAdapter) CreateMarker(ctx context.Context, name string, commit string, annotate bool, message string) error {
	existing, err := a.ListMarkers(ctx, name)
	if err != nil {
		return err
	}
	for _, marker := range existing {
		if marker.Name == name {
			return errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(fmt.Sprintf("marker %s already exists", name))
		}
	}
	args := []string{"tag"}
	if annotate {
		args = append(args, "-a", "-m", message)
	}
	args = append(args, name)
	if commit != "" {
		args = append(args, commit)
	}
	if _, err := a.runner.runOnce(ctx, "git", args...); err != nil {
		return wrapGitError(fmt.Sprintf("cannot create marker %s", name), err)
	}
	return nil
}

func (a *GitDestAdapter) DeleteMarker(ctx context.Context, name string) error {
	if _, err := a.runner.runOnce(ctx, "git", "tag", "-d", name); err != nil {
		return wrapGitError(fmt.Sprintf("cannot delete marker %s", name), err)
	}
	return nil
}

func (a *GitDestAdapter) ListMarkers(ctx context.Context, prefix string) ([]types.MarkerRef, error) {
	// for-each-ref patterns glob per path component, so "refs/tags/import/*"
	// never matches nested marker names like import/libs/Util/Util-00-09-01.
	// List the whole tag namespace and filter the prefix here.
	output, err := a.runner.run(ctx, "git", "for-each-ref", "refs/tags",
		"--format=%(refname:short)%09%(objectname)%09%(*objectname)")
	if err != nil {
		return nil, wrapGitError("cannot list markers", err)
	}
	var markers []types.MarkerRef
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		if prefix != "" && !strings.HasPrefix(fields[0], prefix) {
			continue
		}
		commit := fields[1]
		if len(fields) > 2 && fields[2] != "" {
			// Annotated markers point at a tag object; use the peeled
			// commit.
			commit = fields[2]
		}
		markers = append(markers, types.MarkerRef{Name: fields[0], Commit: commit})
	}
	return markers, nil
}

func (a *GitDestAdapter) FindCommitBySubject(ctx context.Context, subject string) (string, error) {
	output, err := a.runner.run(ctx, "git", "log", "--all", "--fixed-strings",
		"--grep", subject, "--pretty=format:%H%x09%s")
	if err != nil {
		// An empty repository has no log to search.
		return "", nil
	}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.SplitN(strings.TrimRight(line, "\r"), "\t", 2)
		if len(fields) == 2 && fields[1] == subject {
			return fields[0], nil
		}
	}
	return "", nil
}

func wrapGitError(msg string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg).
		WithCause(err)
}

// clearWorkingTree deletes every non-hidden entry in the repository working
// copy.
func clearWorkingTree(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyTree(src string, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src string, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

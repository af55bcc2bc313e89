package adapters

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/types"
)

// Files larger than this are dropped during export unless they look like
// source code.
const maxImportFileSize = 100 * 1024

var importableSuffixes = map[string]bool{
	".cxx":  true,
	".cc":   true,
	".c":    true,
	".h":    true,
	".py":   true,
	".java": true,
}

// SvnSourceAdapter drives the svn command line against a repository root
// (URL or local path).
type SvnSourceAdapter struct {
	Root   string
	runner commandRunner
}

func NewSvnSourceAdapter(root string) SvnSourceAdapter {
	return SvnSourceAdapter{
		Root:   strings.TrimRight(root, "/"),
		runner: newCommandRunner(""),
	}
}

func (a SvnSourceAdapter) ListTags(ctx context.Context, pkgPath string, includeTrunk bool) ([]string, error) {
	output, err := a.runner.run(ctx, "svn", "ls", a.join(pkgPath, "tags"))
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("cannot list tags for package %s", pkgPath)).
			WithCause(err)
	}
	var tags []string
	for _, entry := range strings.Fields(output) {
		tags = append(tags, strings.TrimRight(entry, "/"))
	}
	if includeTrunk {
		tags = append(tags, types.TrunkTag)
	}
	return tags, nil
}

type svnLogEntry struct {
	Revision int64  `xml:"revision,attr"`
	Author   string `xml:"author"`
	Date     string `xml:"date"`
	Message  string `xml:"msg"`
}

type svnLog struct {
	Entries []svnLogEntry `xml:"logentry"`
}

func (a SvnSourceAdapter) PathMetadata(ctx context.Context, pkgPath string, tag string) (types.RevisionMeta, error) {
	target := a.join(pkgPath, tagSubpath(tag))
	output, err := a.runner.run(ctx, "svn", "log", "--xml", "-l", "1", target)
	if err != nil {
		return types.RevisionMeta{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no revision found for %s tag %s", pkgPath, tag)).
			WithCause(err)
	}
	var parsed svnLog
	if err := xml.Unmarshal([]byte(output), &parsed); err != nil {
		return types.RevisionMeta{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("cannot parse svn log for %s tag %s", pkgPath, tag)).
			WithCause(err)
	}
	if len(parsed.Entries) == 0 {
		return types.RevisionMeta{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("empty svn log for %s tag %s", pkgPath, tag))
	}
	entry := parsed.Entries[0]
	return types.RevisionMeta{
		Revision: entry.Revision,
		Author:   entry.Author,
		Date:     parseSvnDate(entry.Date),
		Message:  strings.TrimSpace(entry.Message),
	}, nil
}

func (a SvnSourceAdapter) Export(ctx context.Context, pkgPath string, tag string, destDir string) error {
	target := a.join(pkgPath, tagSubpath(tag))
	// --force: the caller hands over a pre-created staging directory.
	if _, err := a.runner.run(ctx, "svn", "export", "--quiet", "--force", target, destDir); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("cannot export %s tag %s", pkgPath, tag)).
			WithCause(err)
	}
	return cleanExportedTree(destDir)
}

func (a SvnSourceAdapter) FindPackages(ctx context.Context, root string, veto []string) ([]string, error) {
	vetoSet := map[string]bool{}
	for _, entry := range veto {
		vetoSet[strings.TrimRight(entry, "/")] = true
	}
	return a.findPackages(ctx, strings.Trim(root, "/"), vetoSet)
}

func (a SvnSourceAdapter) findPackages(ctx context.Context, dir string, veto map[string]bool) ([]string, error) {
	output, err := a.runner.run(ctx, "svn", "ls", a.join(dir))
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("cannot list source path %s", dir)).
			WithCause(err)
	}
	entries := strings.Fields(output)
	if containsEntry(entries, "trunk/") && containsEntry(entries, "tags/") {
		log.Info().Str("package", dir).Msg("found leaf package")
		return []string{dir}, nil
	}
	var packages []string
	for _, entry := range entries {
		if !strings.HasSuffix(entry, "/") {
			continue
		}
		name := strings.TrimRight(entry, "/")
		if veto[name] || strings.Contains(name, " ") {
			continue
		}
		found, err := a.findPackages(ctx, strings.Trim(dir+"/"+name, "/"), veto)
		if err != nil {
			return nil, err
		}
		packages = append(packages, found...)
	}
	return packages, nil
}

func (a SvnSourceAdapter) join(elements ...string) string {
	parts := append([]string{a.Root}, elements...)
	return strings.Join(parts, "/")
}

func tagSubpath(tag string) string {
	if tag == types.TrunkTag {
		return types.TrunkTag
	}
	return "tags/" + tag
}

func containsEntry(entries []string, want string) bool {
	for _, entry := range entries {
		if entry == want {
			return true
		}
	}
	return false
}

// svn reports dates as 2017-01-31T12:00:00.123456Z; the sub-second part is
// dropped.
func parseSvnDate(value string) time.Time {
	trimmed := strings.TrimSuffix(value, "Z")
	if idx := strings.LastIndex(trimmed, "."); idx > 0 {
		trimmed = trimmed[:idx]
	}
	parsed, err := time.Parse("2006-01-02T15:04:05", trimmed)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

// cleanExportedTree drops payload files that must not reach the destination
// repository: dot-prefixed entries and oversized non-source files.
func cleanExportedTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("skipping unreadable export entry")
			return nil
		}
		if path == root || info.IsDir() {
			return nil
		}
		name := info.Name()
		if strings.HasPrefix(name, ".") {
			log.Warn().Str("file", path).Msg("dot file excluded from import")
			return os.Remove(path)
		}
		if info.Size() > maxImportFileSize {
			if importableSuffixes[filepath.Ext(name)] || name == "ChangeLog" {
				log.Info().Str("file", path).Msg("oversized source file imported anyway")
				return nil
			}
			log.Warn().Str("file", path).Int64("size", info.Size()).Msg("oversized file excluded from import")
			return os.Remove(path)
		}
		return nil
	})
}

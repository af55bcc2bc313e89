package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tagmigrate/internal/app"
)

type importOptions struct {
	SourceRoot    string
	DestDir       string
	Snapshots     []string
	Diffs         []string
	Packages      []string
	DiscoverRoot  string
	DiscoverVeto  []string
	PathPrefix    string
	IncludeTrunk  bool
	TagLimit      int
	TagMaxAge     int64
	CachePath     string
	AuthorMap     string
	AuthorDomain  string
	Branch        string
	LookupWorkers int
}

func newImportCommand() *cobra.Command {
	opts := importOptions{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import package tags into the destination repository in revision order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SourceRoot, "source", "", "Source repository root URL")
	cmd.Flags().StringVar(&opts.DestDir, "dest", "", "Destination repository directory")
	cmd.Flags().StringSliceVar(&opts.Snapshots, "snapshot", nil, "Release snapshot file(s)")
	cmd.Flags().StringSliceVar(&opts.Diffs, "diff", nil, "Tag-diff file(s)")
	cmd.Flags().StringSliceVar(&opts.Packages, "package", nil, "Explicit package path(s)")
	cmd.Flags().StringVar(&opts.DiscoverRoot, "discover-root", "", "Source subtree to scan for packages")
	cmd.Flags().StringSliceVar(&opts.DiscoverVeto, "discover-veto", nil, "Path elements excluded from discovery")
	cmd.Flags().StringVar(&opts.PathPrefix, "path-prefix", "", "Only import packages under this path prefix")
	cmd.Flags().BoolVar(&opts.IncludeTrunk, "include-trunk", false, "Also import package trunks")
	cmd.Flags().IntVar(&opts.TagLimit, "tag-limit", 0, "Keep only the newest N tags per package (0 = all)")
	cmd.Flags().Int64Var(&opts.TagMaxAge, "tag-max-age", 0, "Drop tags older than this unix timestamp (0 = no cutoff)")
	cmd.Flags().StringVar(&opts.CachePath, "cache", "", "Metadata cache file")
	cmd.Flags().StringVar(&opts.AuthorMap, "author-map", "", "YAML author map file")
	cmd.Flags().StringVar(&opts.AuthorDomain, "author-domain", "", "Mail domain for unmapped committer ids")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "Import branch (default master)")
	cmd.Flags().IntVar(&opts.LookupWorkers, "workers", 0, "Parallel revision lookup workers (default 8)")

	_ = viper.BindPFlag("source", cmd.Flags().Lookup("source"))
	_ = viper.BindPFlag("dest", cmd.Flags().Lookup("dest"))
	_ = viper.BindPFlag("snapshots", cmd.Flags().Lookup("snapshot"))
	_ = viper.BindPFlag("diffs", cmd.Flags().Lookup("diff"))
	_ = viper.BindPFlag("packages", cmd.Flags().Lookup("package"))
	_ = viper.BindPFlag("discover_root", cmd.Flags().Lookup("discover-root"))
	_ = viper.BindPFlag("discover_veto", cmd.Flags().Lookup("discover-veto"))
	_ = viper.BindPFlag("path_prefix", cmd.Flags().Lookup("path-prefix"))
	_ = viper.BindPFlag("include_trunk", cmd.Flags().Lookup("include-trunk"))
	_ = viper.BindPFlag("tag_limit", cmd.Flags().Lookup("tag-limit"))
	_ = viper.BindPFlag("tag_max_age", cmd.Flags().Lookup("tag-max-age"))
	_ = viper.BindPFlag("cache", cmd.Flags().Lookup("cache"))
	_ = viper.BindPFlag("author_map", cmd.Flags().Lookup("author-map"))
	_ = viper.BindPFlag("author_domain", cmd.Flags().Lookup("author-domain"))
	_ = viper.BindPFlag("branch", cmd.Flags().Lookup("branch"))
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, opts importOptions) error {
	service := newAppService()
	result, err := service.Import(ctx, app.ImportRequest{
		SourceRoot:    resolveString(cmd, opts.SourceRoot, "source", "source"),
		DestDir:       resolveString(cmd, opts.DestDir, "dest", "dest"),
		SnapshotFiles: resolveStrings(cmd, opts.Snapshots, "snapshots", "snapshot"),
		DiffFiles:     resolveStrings(cmd, opts.Diffs, "diffs", "diff"),
		Packages:      resolveStrings(cmd, opts.Packages, "packages", "package"),
		DiscoverRoot:  resolveString(cmd, opts.DiscoverRoot, "discover_root", "discover-root"),
		DiscoverVeto:  resolveStrings(cmd, opts.DiscoverVeto, "discover_veto", "discover-veto"),
		PathPrefix:    resolveString(cmd, opts.PathPrefix, "path_prefix", "path-prefix"),
		IncludeTrunk:  resolveBool(cmd, opts.IncludeTrunk, "include_trunk", "include-trunk"),
		TagLimit:      resolveInt(cmd, opts.TagLimit, "tag_limit", "tag-limit"),
		TagMaxAge:     int64(resolveInt(cmd, int(opts.TagMaxAge), "tag_max_age", "tag-max-age")),
		CachePath:     resolveString(cmd, opts.CachePath, "cache", "cache"),
		AuthorMap:     resolveString(cmd, opts.AuthorMap, "author_map", "author-map"),
		AuthorDomain:  resolveString(cmd, opts.AuthorDomain, "author_domain", "author-domain"),
		Branch:        resolveString(cmd, opts.Branch, "branch", "branch"),
		LookupWorkers: resolveInt(cmd, opts.LookupWorkers, "workers", "workers"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("imported: %d (recovered %d, already done %d, skipped %d, trimmed %d)\n",
		result.Imported, result.Recovered, result.AlreadyDone, len(result.Skipped), result.Trimmed)
	for _, skip := range result.Skipped {
		fmt.Printf("skipped: %s %s: %s\n", skip.Path, skip.Tag, skip.Reason)
	}
	return nil
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	if cmd == nil {
		if len(values) > 0 {
			return values
		}
		return viper.GetStringSlice(key)
	}
	if flagChanged(cmd, flagName) {
		return values
	}
	return viper.GetStringSlice(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tagmigrate/internal/app"
)

type branchOptions struct {
	DestDir            string
	Branch             string
	Snapshots          []string
	BaseSnapshot       string
	ParentAnchor       string
	OnlyForward        bool
	SkipReleaseMarkers bool
	CommitDate         string
	DryRun             bool
	AuthorMap          string
	AuthorDomain       string
}

func newBranchCommand() *cobra.Command {
	opts := branchOptions{}
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Rebuild a branch from release snapshots, one commit per snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBranch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DestDir, "dest", "", "Destination repository directory")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "Branch to reconstruct")
	cmd.Flags().StringSliceVar(&opts.Snapshots, "snapshot", nil, "Release snapshot file(s)")
	cmd.Flags().StringVar(&opts.BaseSnapshot, "base", "", "Base release snapshot for revert handling")
	cmd.Flags().StringVar(&opts.ParentAnchor, "parent", "", "Parent anchor BRANCH:COMMIT or BRANCH:@TIMESTAMP")
	cmd.Flags().BoolVar(&opts.OnlyForward, "only-forward", false, "Veto snapshots and tags that move the branch backwards")
	cmd.Flags().BoolVar(&opts.SkipReleaseMarkers, "skip-release-markers", false, "Do not create release markers")
	cmd.Flags().StringVar(&opts.CommitDate, "commit-date", "release", "Committer date mode: now, release or author")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Log the plan without changing anything")
	cmd.Flags().StringVar(&opts.AuthorMap, "author-map", "", "YAML author map file")
	cmd.Flags().StringVar(&opts.AuthorDomain, "author-domain", "", "Mail domain for unmapped committer ids")

	_ = viper.BindPFlag("dest", cmd.Flags().Lookup("dest"))
	_ = viper.BindPFlag("branch", cmd.Flags().Lookup("branch"))
	_ = viper.BindPFlag("snapshots", cmd.Flags().Lookup("snapshot"))
	_ = viper.BindPFlag("base", cmd.Flags().Lookup("base"))
	_ = viper.BindPFlag("parent", cmd.Flags().Lookup("parent"))
	_ = viper.BindPFlag("only_forward", cmd.Flags().Lookup("only-forward"))
	_ = viper.BindPFlag("skip_release_markers", cmd.Flags().Lookup("skip-release-markers"))
	_ = viper.BindPFlag("commit_date", cmd.Flags().Lookup("commit-date"))
	_ = viper.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("author_map", cmd.Flags().Lookup("author-map"))
	_ = viper.BindPFlag("author_domain", cmd.Flags().Lookup("author-domain"))

	return cmd
}

func runBranch(ctx context.Context, cmd *cobra.Command, opts branchOptions) error {
	service := newAppService()
	result, err := service.Reconstruct(ctx, app.ReconstructRequest{
		DestDir:            resolveString(cmd, opts.DestDir, "dest", "dest"),
		Branch:             resolveString(cmd, opts.Branch, "branch", "branch"),
		SnapshotFiles:      resolveStrings(cmd, opts.Snapshots, "snapshots", "snapshot"),
		BaseSnapshot:       resolveString(cmd, opts.BaseSnapshot, "base", "base"),
		ParentAnchor:       resolveString(cmd, opts.ParentAnchor, "parent", "parent"),
		OnlyForward:        resolveBool(cmd, opts.OnlyForward, "only_forward", "only-forward"),
		SkipReleaseMarkers: resolveBool(cmd, opts.SkipReleaseMarkers, "skip_release_markers", "skip-release-markers"),
		CommitDate:         resolveString(cmd, opts.CommitDate, "commit_date", "commit-date"),
		DryRun:             resolveBool(cmd, opts.DryRun, "dry_run", "dry-run"),
		AuthorMap:          resolveString(cmd, opts.AuthorMap, "author_map", "author-map"),
		AuthorDomain:       resolveString(cmd, opts.AuthorDomain, "author_domain", "author-domain"),
	})
	if err != nil {
		return err
	}
	for _, applied := range result.Applied {
		fmt.Printf("applied: %s (%d updated, %d removed, %d reverted)\n",
			applied.Release, applied.Updated, applied.Removed, applied.Reverted)
	}
	for _, skipped := range result.Skipped {
		fmt.Printf("skipped: %s: %s\n", skipped.Release, skipped.Reason)
	}
	for _, dropped := range result.Dropped {
		fmt.Printf("dropped: %s: %s\n", dropped.Release, dropped.Reason)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tagmigrate/internal/app"
)

type mergeOptions struct {
	Target  string
	Sources []string
	Output  string
}

func newMergeCommand() *cobra.Command {
	opts := mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge snapshots into a super-release without overwriting existing packages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMerge(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "Target snapshot file")
	cmd.Flags().StringSliceVar(&opts.Sources, "source-snapshot", nil, "Snapshot file(s) to merge in")
	cmd.Flags().StringVar(&opts.Output, "output", "", "Output file (defaults to the target)")

	_ = viper.BindPFlag("merge_target", cmd.Flags().Lookup("target"))
	_ = viper.BindPFlag("merge_sources", cmd.Flags().Lookup("source-snapshot"))
	_ = viper.BindPFlag("merge_output", cmd.Flags().Lookup("output"))

	return cmd
}

func runMerge(ctx context.Context, cmd *cobra.Command, opts mergeOptions) error {
	service := newAppService()
	result, err := service.Merge(ctx, app.MergeRequest{
		TargetFile:  resolveString(cmd, opts.Target, "merge_target", "target"),
		SourceFiles: resolveStrings(cmd, opts.Sources, "merge_sources", "source-snapshot"),
		Output:      resolveString(cmd, opts.Output, "merge_output", "output"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("merged: %s (%d package(s) adopted) -> %s\n",
		result.Release, len(result.Adopted), result.OutputPath)
	return nil
}

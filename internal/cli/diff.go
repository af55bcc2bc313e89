package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tagmigrate/internal/app"
)

type diffOptions struct {
	Snapshots []string
	Output    string
}

func newDiffCommand() *cobra.Command {
	opts := diffOptions{}
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compute tag-diff records across a snapshot sequence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiff(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Snapshots, "snapshot", nil, "Release snapshot file(s)")
	cmd.Flags().StringVar(&opts.Output, "output", "", "Tag-diff output file (omit to print only)")

	_ = viper.BindPFlag("snapshots", cmd.Flags().Lookup("snapshot"))
	_ = viper.BindPFlag("diff_output", cmd.Flags().Lookup("output"))

	return cmd
}

func runDiff(ctx context.Context, cmd *cobra.Command, opts diffOptions) error {
	service := newAppService()
	result, err := service.Diff(ctx, app.DiffRequest{
		SnapshotFiles: resolveStrings(cmd, opts.Snapshots, "snapshots", "snapshot"),
		Output:        resolveString(cmd, opts.Output, "diff_output", "output"),
	})
	if err != nil {
		return err
	}
	for _, diff := range result.Diffs {
		fmt.Printf("%s: %d change(s)\n", diff.Release.Name, len(diff.Records))
		for _, record := range diff.Records {
			switch record.Kind {
			case "added":
				fmt.Printf("  + %s %s\n", record.Path, record.NewTag)
			case "removed":
				fmt.Printf("  - %s %s\n", record.Path, record.PrevTag)
			default:
				fmt.Printf("  ~ %s %s -> %s\n", record.Path, record.PrevTag, record.NewTag)
			}
		}
	}
	if result.OutputPath != "" {
		fmt.Printf("written: %s\n", result.OutputPath)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tagmigrate/internal/app"
)

type orderOptions struct {
	Snapshots []string
}

func newOrderCommand() *cobra.Command {
	opts := orderOptions{}
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Sort snapshot files chronologically by build timestamp",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOrder(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Snapshots, "snapshot", nil, "Release snapshot file(s)")
	_ = viper.BindPFlag("snapshots", cmd.Flags().Lookup("snapshot"))

	return cmd
}

func runOrder(ctx context.Context, cmd *cobra.Command, opts orderOptions) error {
	service := newAppService()
	result, err := service.Order(ctx, app.OrderRequest{
		SnapshotFiles: resolveStrings(cmd, opts.Snapshots, "snapshots", "snapshot"),
	})
	if err != nil {
		return err
	}
	for _, snapshot := range result.Ordered {
		fmt.Printf("%d %s %s\n", snapshot.Timestamp, snapshot.Release, snapshot.Path)
	}
	return nil
}

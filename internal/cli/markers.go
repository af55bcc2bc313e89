package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tagmigrate/internal/app"
)

type markersOptions struct {
	DestDir string
	Prefix  string
}

func newMarkersCommand() *cobra.Command {
	opts := markersOptions{}
	cmd := &cobra.Command{
		Use:   "markers",
		Short: "List import and release markers in the destination repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMarkers(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DestDir, "dest", "", "Destination repository directory")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Only list markers under this ref prefix")

	_ = viper.BindPFlag("dest", cmd.Flags().Lookup("dest"))
	_ = viper.BindPFlag("marker_prefix", cmd.Flags().Lookup("prefix"))

	return cmd
}

func runMarkers(ctx context.Context, cmd *cobra.Command, opts markersOptions) error {
	service := newAppService()
	result, err := service.Markers(ctx, app.MarkersRequest{
		DestDir: resolveString(cmd, opts.DestDir, "dest", "dest"),
		Prefix:  resolveString(cmd, opts.Prefix, "marker_prefix", "prefix"),
	})
	if err != nil {
		return err
	}
	for _, marker := range result.Markers {
		fmt.Printf("%s %s\n", marker.Commit, marker.Name)
	}
	return nil
}

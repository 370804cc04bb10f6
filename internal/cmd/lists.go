package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/cookiebanner/scanner/internal/lists"
)

var (
	listsLong = templates.LongDesc(`Manage the on-disk auxiliary data scans read from storage-path: the
		cookie-banner filter lists and the tracker catalogue.`)

	listsRefreshExample = templates.Examples(`
		# Refresh every auxiliary list under ./storage
		cookiescan lists refresh --storage-path ./storage`)
)

// NewListsCommand creates the `lists` command group.
func NewListsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Manage filter lists and the tracker catalogue",
		Long:  listsLong,
	}
	cmd.AddCommand(newListsRefreshCommand())
	return cmd
}

func newListsRefreshCommand() *cobra.Command {
	var storagePath string

	cmd := &cobra.Command{
		Use:     "refresh",
		Short:   "Download the filter lists and tracker catalogue",
		Example: listsRefreshExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(cmd.OutOrStdout(), "Refreshing filter lists...")
			if err := lists.RefreshFilterLists(ctx, storagePath); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Refreshing tracker catalogue...")
			if err := lists.RefreshTrackerCatalogue(ctx, storagePath); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Done.")
			return nil
		},
	}
	cmd.Flags().StringVar(&storagePath, "storage-path", "storage", "Root directory for auxiliary data")

	return cmd
}

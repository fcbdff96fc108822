package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetboot/cmd/fleetboot/handlers"
)

// Storage returns the storage command group for S3-compatible object storage.
func Storage(g *handlers.Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Manage object storage buckets and files",
		Long: `Manage buckets and files in S3-compatible object storage.

Credentials are read from the storage section of the configuration or from
FLEETBOOT_S3_ACCESS_KEY, FLEETBOOT_S3_SECRET_KEY and FLEETBOOT_S3_ENDPOINT.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create-bucket <bucket>",
		Short: "Create a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.CreateBucket(cmd.Context(), *g, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <bucket> [prefix]",
		Short: "List objects in a bucket",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.ListObjects(cmd.Context(), *g, args[0], optionalArg(args, 1))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "upload <bucket> <file> [key]",
		Short: "Upload a file",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Upload(cmd.Context(), *g, args[0], args[1], optionalArg(args, 2))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "download <bucket> <key> [dest]",
		Short: "Download an object (dest - writes to stdout)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Download(cmd.Context(), *g, args[0], args[1], optionalArg(args, 2))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <bucket> [key]",
		Short: "Delete an object, or the bucket when no key is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Delete(cmd.Context(), *g, args[0], optionalArg(args, 1))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "runs [bucket]",
		Short: "List archived run reports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.ListRuns(cmd.Context(), *g, optionalArg(args, 0))
		},
	})

	return cmd
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

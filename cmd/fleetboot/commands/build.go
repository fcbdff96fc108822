package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetboot/cmd/fleetboot/handlers"
)

// Build returns the build command.
//
// The build command launches instances of a configured build, waits for
// them to run, names and labels them, and then runs the build's stages on
// all of them.
func Build(g *handlers.Globals) *cobra.Command {
	opts := handlers.BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build <build> <tag>",
		Short: "Launch and provision instances of a build",
		Long: `Launch instances of a build and run its setup stages.

Instances are named after the tag. A single instance keeps the tag as its
name; several instances are numbered <tag>-1, <tag>-2, ... A build suffix is
inserted before the number.

Stages run in a fixed order (upgrade, group, pip, script, user). Every
instance finishes a stage before any instance starts the next one. A task
that fails on one instance does not stop the others.

Examples:
  # Launch one web server named "web"
  fleetboot build web web

  # Launch three workers named batch-1..batch-3 in project "etl"
  fleetboot build worker batch --count 3 --project etl --yes

Environment variables:
  HCLOUD_TOKEN: Hetzner Cloud API token (required)`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Build = args[0]
			opts.Tag = args[1]
			return handlers.Build(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "Number of instances to launch")
	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "Project label for the instances")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Launch without asking for confirmation")

	return cmd
}

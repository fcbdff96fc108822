package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetboot/cmd/fleetboot/handlers"
)

// Project returns the project command group.
func Project(g *handlers.Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Work with projects of several builds",
	}
	cmd.AddCommand(projectLaunch(g))
	return cmd
}

func projectLaunch(g *handlers.Globals) *cobra.Command {
	opts := handlers.ProjectOptions{}

	cmd := &cobra.Command{
		Use:   "launch <project> <tag>",
		Short: "Launch every build of a project",
		Long: `Launch every build of a project concurrently.

All builds are validated before anything is launched. Instance numbers
continue across builds, so a project of web x2 and db x1 tagged "shop"
yields shop-1, shop-2 and shop-3.

Example:
  fleetboot project launch shop shop --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Project = args[0]
			opts.Tag = args[1]
			return handlers.LaunchProject(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Launch without asking for confirmation")
	return cmd
}

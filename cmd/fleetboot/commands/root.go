// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetboot/cmd/fleetboot/handlers"
)

// Root returns the root command for the fleetboot CLI.
//
// The global --config and --verbose flags are bound once here and shared
// with every subcommand.
func Root() *cobra.Command {
	g := &handlers.Globals{}

	cmd := &cobra.Command{
		Use:          "fleetboot",
		Short:        "Launch and provision servers on Hetzner Cloud",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.ConfigPath, "config", "c", "", "Path to configuration file (default: fleetboot.yaml)")
	cmd.PersistentFlags().CountVarP(&g.Verbose, "verbose", "v", "Increase log verbosity (repeatable)")

	// Provisioning commands
	cmd.AddCommand(Build(g))
	cmd.AddCommand(Project(g))
	cmd.AddCommand(Remote(g))

	// Utility commands
	cmd.AddCommand(Key(g))
	cmd.AddCommand(Storage(g))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetboot/cmd/fleetboot/handlers"
	"github.com/imamik/fleetboot/internal/config"
)

// Remote returns the remote command group.
//
// Each subcommand runs one setup stage against running instances selected
// by their name label.
func Remote(g *handlers.Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Run a setup stage on running instances",
		Long: `Run a single setup stage on instances that are already running.

Instances are selected by name, so every instance named <name> is targeted.
The login user is read from the instance labels written at launch.`,
	}

	cmd.AddCommand(remoteUpgrade(g))
	cmd.AddCommand(remoteGroup(g))
	cmd.AddCommand(remotePip(g))
	cmd.AddCommand(remoteScript(g))
	cmd.AddCommand(remoteUser(g))
	return cmd
}

func remoteUpgrade(g *handlers.Globals) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "upgrade <name>",
		Short: "Upgrade installed packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Remote(cmd.Context(), *g, args[0], config.Build{Upgrade: mode})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", config.UpgradeModeUpgrade, "upgrade or dist-upgrade (dist-upgrade reboots)")
	return cmd
}

func remoteGroup(g *handlers.Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "group <name> <group>",
		Short: "Install a package group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Remote(cmd.Context(), *g, args[0], config.Build{Group: args[1]})
		},
	}
}

func remotePip(g *handlers.Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "pip <name> <bundle>",
		Short: "Install a python bundle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Remote(cmd.Context(), *g, args[0], config.Build{Pip: args[1]})
		},
	}
}

func remoteScript(g *handlers.Globals) *cobra.Command {
	stage := config.ScriptStage{}
	cmd := &cobra.Command{
		Use:   "script <name> <script>",
		Short: "Upload and run a script",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := stage
			s.Name = args[1]
			return handlers.Remote(cmd.Context(), *g, args[0], config.Build{Script: &s})
		},
	}
	cmd.Flags().StringVar(&stage.User, "user", "", "User that owns and runs the script (default: login user)")
	cmd.Flags().BoolVar(&stage.CopyOnly, "copy-only", false, "Upload the script without running it")
	cmd.Flags().BoolVar(&stage.Template, "template", false, "Render the script as a Go template before upload")
	return cmd
}

func remoteUser(g *handlers.Globals) *cobra.Command {
	stage := config.UserStage{}
	cmd := &cobra.Command{
		Use:   "user <name> <user>",
		Short: "Create a user with the configured public keys",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := stage
			u.Name = args[1]
			return handlers.Remote(cmd.Context(), *g, args[0], config.Build{User: &u})
		},
	}
	cmd.Flags().StringVar(&stage.FullName, "full-name", "", "Full name (GECOS) of the user")
	cmd.Flags().StringSliceVar(&stage.Groups, "groups", nil, "Supplementary groups")
	cmd.Flags().BoolVar(&stage.Sudo, "sudo", false, "Grant passwordless sudo")
	return cmd
}

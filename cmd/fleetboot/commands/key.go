package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetboot/cmd/fleetboot/handlers"
)

// Key returns the key command group.
func Key(g *handlers.Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage SSH keys",
	}
	cmd.AddCommand(keyCreate(g))
	return cmd
}

func keyCreate(g *handlers.Globals) *cobra.Command {
	opts := handlers.KeyOptions{}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Generate a key pair and register it with Hetzner Cloud",
		Long: `Generate a key pair, save the private key as <key_path>/<name>.pem and
register the public key with Hetzner Cloud under the same name.

Builds refer to the key by name. Existing keys are never overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return handlers.CreateKey(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.RSA, "rsa", false, "Generate a 4096-bit RSA key instead of Ed25519")
	return cmd
}

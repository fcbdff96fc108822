package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/provisioning"
)

// Remote runs the stages set in b against the running instances named name.
// The remote subcommands each set exactly one stage.
func Remote(ctx context.Context, g Globals, name string, b config.Build) error {
	s, err := newSession(ctx, g)
	if err != nil {
		return err
	}

	_, runErr := provisioning.Remote(s.pctx, name, b)
	s.pushMetrics(ctx)
	if runErr != nil {
		return fmt.Errorf("remote run on %s failed: %w", name, runErr)
	}
	return nil
}

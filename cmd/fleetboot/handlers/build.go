package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/imamik/fleetboot/internal/provisioning"
)

// BuildOptions are the arguments of the build command.
type BuildOptions struct {
	Build   string
	Tag     string
	Count   int
	Project string
	// Yes skips the confirmation prompt.
	Yes bool
}

// Build launches Count instances of a configured build and runs its stages.
//
// The build is validated before anything is created. Task failures on
// individual instances are reported but do not stop later stages; the
// command then exits with an error naming how many tasks failed.
func Build(ctx context.Context, g Globals, opts BuildOptions) error {
	s, err := newSession(ctx, g)
	if err != nil {
		return err
	}

	b, err := s.cfg.Build(opts.Build)
	if err != nil {
		return err
	}
	question := fmt.Sprintf("Launch %d %s instance(s) of build %s tagged %q?", opts.Count, b.Size, opts.Build, opts.Tag)
	if err := confirmLaunch(ctx, question, opts.Yes); err != nil {
		return err
	}

	rep, runErr := provisioning.Provision(s.pctx, provisioning.BuildRequest{
		BuildName: opts.Build,
		Tag:       opts.Tag,
		Count:     opts.Count,
		Project:   opts.Project,
	})

	printInstances(rep)
	s.pushMetrics(ctx)
	archiveReports(ctx, s.cfg, []runReport{summarize(s.pctx.RunID, opts.Build, opts.Project, opts.Tag, rep, runErr)})

	if runErr != nil {
		return fmt.Errorf("build %s failed: %w", opts.Build, runErr)
	}
	log.Printf("Build %s finished (run %s)", opts.Build, s.pctx.RunID)
	return nil
}

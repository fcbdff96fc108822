package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/imamik/fleetboot/internal/provisioning"
)

// ProjectOptions are the arguments of the project launch command.
type ProjectOptions struct {
	Project string
	Tag     string
	Yes     bool
}

// LaunchProject launches every build of a project concurrently.
func LaunchProject(ctx context.Context, g Globals, opts ProjectOptions) error {
	s, err := newSession(ctx, g)
	if err != nil {
		return err
	}

	p, ok := s.cfg.Projects[opts.Project]
	if !ok {
		return fmt.Errorf("no project named %q", opts.Project)
	}
	total := 0
	for _, pb := range p.Builds {
		total += pb.Count
	}
	question := fmt.Sprintf("Launch %d instance(s) in %d build(s) of project %s tagged %q?", total, len(p.Builds), opts.Project, opts.Tag)
	if err := confirmLaunch(ctx, question, opts.Yes); err != nil {
		return err
	}

	rep, runErr := provisioning.LaunchProject(s.pctx, opts.Project, opts.Tag)

	var reports []runReport
	if rep != nil {
		for i, b := range rep.Builds {
			printInstances(b)
			name := p.Builds[i].Build
			reports = append(reports, summarize(s.pctx.RunID, name, opts.Project, opts.Tag, b, nil))
		}
	}
	s.pushMetrics(ctx)
	archiveReports(ctx, s.cfg, reports)

	if runErr != nil {
		return fmt.Errorf("project %s failed: %w", opts.Project, runErr)
	}
	log.Printf("Project %s finished (run %s)", opts.Project, s.pctx.RunID)
	return nil
}

package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/util/async"
)

// ProjectReport holds one BuildReport per project build, in project order.
type ProjectReport struct {
	Project string
	Builds  []*BuildReport
}

// Failures returns every failed completion across all builds.
func (r *ProjectReport) Failures() int {
	n := 0
	for _, b := range r.Builds {
		n += len(b.Failures())
	}
	return n
}

type plannedBuild struct {
	req    LaunchRequest
	stages []Stage
}

// LaunchProject validates every build of a project, then launches and
// provisions them concurrently. Instance numbers continue across builds,
// and every instance is numbered, so a project of {db: 1, web: 2} tagged
// "shop" yields shop-1, shop-2 and shop-3. Nothing is launched if any build fails validation.
func LaunchProject(ctx *Context, project, tag string) (*ProjectReport, error) {
	p, ok := ctx.Config.Projects[project]
	if !ok {
		return nil, ValidationErrors{errorf("project", "no project named %q", project)}
	}
	if len(p.Builds) == 0 {
		return nil, ValidationErrors{errorf("project", "project %q has no builds", project)}
	}

	plans, err := planProject(ctx, project, tag, p)
	if err != nil {
		return nil, err
	}

	reports, err := async.Collect(ctx, len(plans), func(c context.Context, i int) (*BuildReport, error) {
		bctx := *ctx
		bctx.Context = c
		bctx.Observer = ctx.Observer.WithFields(map[string]string{"build": plans[i].req.BuildName})

		launch, err := Launch(&bctx, plans[i].req)
		if err != nil {
			return &BuildReport{Launch: launch}, fmt.Errorf("%s: %w", plans[i].req.BuildName, err)
		}
		rep := &BuildReport{Launch: launch}
		rep.Stages = RunStages(&bctx, plans[i].stages, TasksFor(launch, project))
		return rep, nil
	})

	result := &ProjectReport{Project: project, Builds: reports}
	if err != nil {
		return result, err
	}
	var failures []error
	for _, r := range reports {
		if f := r.Failures(); len(f) > 0 {
			failures = append(failures, tasksError(f))
		}
	}
	return result, errors.Join(failures...)
}

func planProject(ctx *Context, project, tag string, p config.Project) ([]plannedBuild, error) {
	var (
		plans  []plannedBuild
		errs   ValidationErrors
		offset int
	)
	for i, pb := range p.Builds {
		b, err := ctx.Config.Build(pb.Build)
		if err != nil {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("projects.%s.builds[%d]", project, i), Message: err.Error(), Severity: SeverityError, Err: err})
			continue
		}
		req := LaunchRequest{
			Build:     b,
			BuildName: pb.Build,
			Tag:       tag,
			Count:     pb.Count,
			Project:   project,
			Offset:    offset,
			InProject: true,
		}
		offset += pb.Count

		var collected ValidationErrors
		if err := report(ctx.Observer, validateLaunch(req)); err != nil {
			errors.As(err, &collected)
			errs = append(errs, collected...)
		}
		stages, err := PlanStages(ctx, pb.Build, b)
		if err != nil {
			if errors.As(err, &collected) {
				errs = append(errs, collected...)
			}
			continue
		}
		plans = append(plans, plannedBuild{req: req, stages: stages})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return plans, nil
}

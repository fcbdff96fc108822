package provisioning

import (
	"fmt"

	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/dispatch"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
	"github.com/imamik/fleetboot/internal/util/labels"
)

// RemoteBuildName is the build name reported for ad-hoc remote stages.
const RemoteBuildName = "remote"

// Targets returns a task template for every instance labelled with name.
// The login comes from the instance's login label.
func Targets(ctx *Context, name string) ([]activity.Task, error) {
	instances, err := ctx.Provider.FindInstances(ctx, labels.SelectorForName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to find instances named %s: %w", name, err)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInstances, name)
	}

	tasks := make([]activity.Task, len(instances))
	for i, inst := range instances {
		tasks[i] = activity.Task{
			BuildName:  inst.Labels[labels.KeyBuild],
			Project:    inst.Labels[labels.KeyProject],
			InstanceID: inst.ID,
		}
	}
	return tasks, nil
}

// Remote runs the stages configured in b against the already running
// instances named name. b normally sets a single stage.
func Remote(ctx *Context, name string, b config.Build) ([]StageReport, error) {
	stages, err := PlanStages(ctx, RemoteBuildName, b)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("nothing to run on %s", name)
	}

	targets, err := Targets(ctx, name)
	if err != nil {
		return nil, err
	}
	ctx.Observer.Printf("Running %d stage(s) on %d instance(s) named %s", len(stages), len(targets), name)

	reports := RunStages(ctx, stages, targets)
	var failures []dispatch.Completion
	for _, r := range reports {
		failures = append(failures, dispatch.Failures(r.Completions)...)
	}
	return reports, tasksError(failures)
}

package provisioning

import (
	"fmt"
	"time"

	"github.com/imamik/fleetboot/internal/dispatch"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

// BuildRequest asks for count instances of a configured build.
type BuildRequest struct {
	BuildName string
	Tag       string
	Count     int
	Project   string
}

// Provision validates a build, launches it and runs its stages. Nothing is
// launched if validation fails. Task failures do not stop later stages;
// they are collected in the report and signalled with ErrTasksFailed.
func Provision(ctx *Context, req BuildRequest) (*BuildReport, error) {
	b, err := ctx.Config.Build(req.BuildName)
	if err != nil {
		return nil, ValidationErrors{{Field: "build", Message: err.Error(), Severity: SeverityError, Err: err}}
	}

	launchReq := LaunchRequest{
		Build:     b,
		BuildName: req.BuildName,
		Tag:       req.Tag,
		Count:     req.Count,
		Project:   req.Project,
	}
	// Stages are planned before launching so a broken build costs nothing.
	stages, err := PlanStages(ctx, req.BuildName, b)
	if err != nil {
		return nil, err
	}

	launch, err := Launch(ctx, launchReq)
	if err != nil {
		return &BuildReport{Launch: launch}, err
	}

	rep := &BuildReport{Launch: launch}
	rep.Stages = RunStages(ctx, stages, TasksFor(launch, req.Project))
	return rep, tasksError(rep.Failures())
}

// TasksFor returns the task template of every launched instance.
func TasksFor(launch *LaunchResult, project string) []activity.Task {
	b := launch.Build
	tasks := make([]activity.Task, len(launch.InstanceIDs))
	for i, id := range launch.InstanceIDs {
		tasks[i] = activity.Task{
			Build:      &b,
			BuildName:  launch.BuildName,
			Project:    project,
			Login:      launch.Login,
			InstanceID: id,
		}
	}
	return tasks
}

// RunStages runs each stage against every instance of targets. Stages run
// strictly in order: a stage is dispatched only once every task of the
// previous stage has completed. Results are logged as they arrive.
func RunStages(ctx *Context, stages []Stage, targets []activity.Task) []StageReport {
	reports := make([]StageReport, 0, len(stages))
	for i, stage := range stages {
		start := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", stage.Name, i+1, len(stages))
		LogPhaseStart(ctx.Observer, name)

		tasks := make([]activity.Task, len(targets))
		for j, t := range targets {
			t.Args = stage.Args
			tasks[j] = t
		}

		rep := StageReport{Stage: stage.Name}
		for c := range dispatch.Await(ctx, ctx.Dispatcher.Dispatch(ctx, tasks, stage.Activity)) {
			LogTaskResult(ctx.Observer, c.Result, c.Err)
			rep.Completions = append(rep.Completions, c)
			ctx.Observer.Progress(stage.Name, len(rep.Completions), len(tasks))
		}
		reports = append(reports, rep)

		if failed := len(dispatch.Failures(rep.Completions)); failed > 0 {
			LogPhaseFailed(ctx.Observer, name, fmt.Errorf("%d of %d task(s) failed", failed, len(tasks)))
		} else {
			LogPhaseComplete(ctx.Observer, name, time.Since(start))
		}

		if ctx.Err() != nil {
			break
		}
	}
	return reports
}

func tasksError(failures []dispatch.Completion) error {
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d task(s) failed", ErrTasksFailed, len(failures))
}

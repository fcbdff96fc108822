package provisioning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/imamik/fleetboot/internal/compute"
	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/metrics"
	"github.com/imamik/fleetboot/internal/util/labels"
	"github.com/imamik/fleetboot/internal/util/naming"
	"github.com/imamik/fleetboot/internal/util/retry"
)

// PhaseLaunch is the phase name of launch events.
const PhaseLaunch = "launch"

// LaunchRequest describes one launch of a build.
type LaunchRequest struct {
	Build     config.Build
	BuildName string
	Tag       string
	Count     int
	Project   string
	// Offset shifts instance numbering, so builds of one project do not
	// reuse names.
	Offset int
	// InProject numbers every instance, even a single one, so names run
	// on across the builds of a project.
	InProject bool
}

// Numbered reports whether instance names carry a position number.
func (r LaunchRequest) Numbered() bool {
	return r.Count > 1 || r.InProject
}

// LaunchResult lists the launched instances in creation order.
type LaunchResult struct {
	BuildName   string
	Build       config.Build
	Login       string
	InstanceIDs []string
	Names       []string
	// Rounds is the number of polling rounds it took for all instances to run.
	Rounds int
}

// Launch requests req.Count instances in one provider call, polls until
// all of them are running and then tags each with its final name and
// labels. If the poll rounds run out, a *LaunchTimeoutError is returned and
// the instances are left in place.
func Launch(ctx *Context, req LaunchRequest) (*LaunchResult, error) {
	if err := report(ctx.Observer, validateLaunch(req)); err != nil {
		return nil, err
	}

	image, err := ctx.Config.Image(req.Build.Image)
	if err != nil {
		return nil, ValidationErrors{{Field: "image", Message: err.Error(), Severity: SeverityError, Err: err}}
	}
	login := ctx.Config.LoginFor(req.Build)

	var userData string
	if req.Build.UserData != "" {
		data, err := os.ReadFile(ctx.Config.ScriptFile(req.Build.UserData))
		if err != nil {
			return nil, ValidationErrors{{Field: "user_data", Message: err.Error(), Severity: SeverityError, Err: err}}
		}
		userData = string(data)
	}

	observer := ctx.Observer.WithFields(map[string]string{"build": req.BuildName, "tag": req.Tag})
	start := time.Now()
	LogPhaseStart(observer, PhaseLaunch)
	observer.Printf("Running %d instance(s) of %s", req.Count, req.BuildName)

	labelsFor := func(name string) map[string]string {
		return launchLabels(req, name).WithLogin(login).WithRun(ctx.RunID).Build()
	}

	ids, err := ctx.Provider.LaunchInstances(ctx, compute.LaunchSpec{
		Tag:       req.Tag,
		RunID:     ctx.RunID,
		Count:     req.Count,
		Size:      req.Build.Size,
		Image:     image.Name,
		Key:       req.Build.Key,
		Zone:      req.Build.Zone,
		Firewalls: req.Build.SecurityGroups,
		UserData:  userData,
		Labels:    labelsFor(req.Tag),
	})
	if err != nil {
		ctx.Recorder.RecordLaunch(metrics.ResultError, req.Count, 0)
		LogPhaseFailed(observer, PhaseLaunch, err)
		return partialResult(ctx, observer, req, login, err), fmt.Errorf("failed to launch %s: %w", req.BuildName, err)
	}
	if len(ids) != req.Count {
		err := fmt.Errorf("provider returned %d instances, requested %d", len(ids), req.Count)
		ctx.Recorder.RecordLaunch(metrics.ResultError, req.Count, 0)
		LogPhaseFailed(observer, PhaseLaunch, err)
		return nil, err
	}

	observer.Printf("Waiting for instance(s) to come up")
	rounds, err := waitRunning(ctx, observer, ids)
	if err != nil {
		ctx.Recorder.RecordLaunch(metrics.ResultError, req.Count, rounds)
		LogPhaseFailed(observer, PhaseLaunch, err)
		return nil, err
	}
	observer.Printf("Instance(s) now running")

	result := &LaunchResult{
		BuildName:   req.BuildName,
		Build:       req.Build,
		Login:       login,
		InstanceIDs: ids,
		Names:       make([]string, len(ids)),
		Rounds:      rounds,
	}

	var tagErrs []error
	for i, id := range ids {
		name := naming.Instance(req.Tag, req.Build.Suffix, req.Offset+i, req.Numbered())
		result.Names[i] = name

		if err := ctx.Provider.TagInstance(ctx, id, name, labelsFor(name)); err != nil {
			tagErrs = append(tagErrs, fmt.Errorf("instance %s: %w", id, err))
			continue
		}
		observer.Event(Event{Type: EventInstanceTagged, Phase: PhaseLaunch, Resource: id, Message: name})
	}
	if err := errors.Join(tagErrs...); err != nil {
		ctx.Recorder.RecordLaunch(metrics.ResultError, req.Count, rounds)
		LogPhaseFailed(observer, PhaseLaunch, err)
		return result, fmt.Errorf("failed to tag instances: %w", err)
	}

	logConnectionHints(ctx, observer, result)
	ctx.Recorder.RecordLaunch(metrics.ResultSuccess, req.Count, rounds)
	LogPhaseComplete(observer, PhaseLaunch, time.Since(start))
	return result, nil
}

// launchLabels returns the labels every instance of req carries.
func launchLabels(req LaunchRequest, name string) *labels.LabelBuilder {
	return labels.NewLabelBuilder(name).
		WithProject(req.Project).
		WithBuild(req.BuildName).
		WithSSHKey(req.Build.Key)
}

// waitRunning polls instance status until every instance is running. It
// returns the number of rounds used.
func waitRunning(ctx *Context, observer Observer, ids []string) (int, error) {
	interval := ctx.Timeouts.LaunchPollInterval
	rounds := ctx.Timeouts.LaunchPollRounds

	running := make(map[string]bool, len(ids))
	used := 0
	err := retry.Poll(ctx, interval, rounds, func(round int) (bool, error) {
		used = round
		ready := true
		for _, id := range ids {
			if running[id] {
				continue
			}
			status, err := ctx.Provider.InstanceStatus(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				// A failed lookup counts as not running for this round.
				LogInstanceStatus(observer, id, fmt.Sprintf("status unavailable: %v", err), round, rounds)
				ready = false
				continue
			}
			if status == compute.StatusRunning {
				running[id] = true
				continue
			}
			LogInstanceStatus(observer, id, string(status), round, rounds)
			ready = false
		}
		return ready, nil
	})

	if errors.Is(err, retry.ErrPollExhausted) {
		var pending []string
		for _, id := range ids {
			if !running[id] {
				pending = append(pending, id)
			}
		}
		return used, &LaunchTimeoutError{InstanceIDs: ids, Pending: pending, Rounds: rounds, Interval: interval}
	}
	return used, err
}

// partialResult reports the servers a failed launch still created. They
// keep running and carry the run label, so the operator can find them.
func partialResult(ctx *Context, observer Observer, req LaunchRequest, login string, err error) *LaunchResult {
	var partial *compute.PartialLaunchError
	if !errors.As(err, &partial) || len(partial.Created) == 0 {
		return nil
	}

	names := make([]string, len(partial.Created))
	for i, id := range partial.Created {
		if i < len(partial.Names) {
			names[i] = partial.Names[i]
		}
		observer.Event(Event{Type: EventInstanceOrphaned, Phase: PhaseLaunch, Resource: id, Message: names[i]})
	}
	observer.Printf("%d instance(s) were created and left running; list them with label selector %s",
		len(partial.Created), labels.SelectorForRun(ctx.RunID))

	return &LaunchResult{
		BuildName:   req.BuildName,
		Build:       req.Build,
		Login:       login,
		InstanceIDs: partial.Created,
		Names:       names,
	}
}

func logConnectionHints(ctx *Context, observer Observer, result *LaunchResult) {
	for i, id := range result.InstanceIDs {
		inst, err := ctx.Provider.DescribeInstance(ctx, id)
		if err != nil || inst.PublicIP == "" {
			continue
		}
		hint := fmt.Sprintf("ssh %s@%s", result.Login, inst.PublicIP)
		if result.Build.Key != "" {
			hint = fmt.Sprintf("ssh -i %s %s@%s", ctx.Config.KeyFile(result.Build.Key), result.Login, inst.PublicIP)
		}
		observer.Event(Event{Type: EventInstanceReady, Phase: PhaseLaunch, Resource: result.Names[i], Message: hint})
	}
}

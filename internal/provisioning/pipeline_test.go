package provisioning

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetboot/internal/bundle"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

func TestProvision_RunsStagesInOrder(t *testing.T) {
	t.Parallel()
	log := &stageLog{}
	acts := fakeActivities(log)
	// The first instance is slow in the first stage; no second-stage task
	// may start before it finishes.
	acts.Upgrade.(*fakeActivity).delay = func(id string) time.Duration {
		if id == "1001" {
			return 30 * time.Millisecond
		}
		return 0
	}
	ctx, obs := newTestContext(t, testConfig(), newFakeProvider(1), acts)

	rep, err := Provision(ctx, BuildRequest{BuildName: "web", Tag: "web", Count: 3, Project: "shop"})
	require.NoError(t, err)

	require.Len(t, rep.Stages, 2)
	assert.Equal(t, activity.StageUpgrade, rep.Stages[0].Stage)
	assert.Equal(t, activity.StageGroup, rep.Stages[1].Stage)
	for _, s := range rep.Stages {
		assert.Len(t, s.Completions, 3)
	}

	marks := log.all()
	lastUpgradeEnd, firstGroupStart := -1, len(marks)
	for i, m := range marks {
		if strings.HasPrefix(m, "upgrade:end:") {
			lastUpgradeEnd = i
		}
		if strings.HasPrefix(m, "group:start:") && i < firstGroupStart {
			firstGroupStart = i
		}
	}
	assert.Less(t, lastUpgradeEnd, firstGroupStart, "marks: %v", marks)

	assert.Len(t, obs.EventsOf(EventTaskSucceeded), 6)
	assert.Empty(t, rep.Failures())
}

func TestProvision_ReportsStageProgress(t *testing.T) {
	t.Parallel()
	ctx, obs := newTestContext(t, testConfig(), newFakeProvider(1), fakeActivities(&stageLog{}))

	_, err := Provision(ctx, BuildRequest{BuildName: "web", Tag: "web", Count: 3})
	require.NoError(t, err)

	byPhase := map[string][]string{}
	for _, e := range obs.EventsOf(EventProgress) {
		byPhase[e.Phase] = append(byPhase[e.Phase], e.Message)
	}
	want := []string{"1/3", "2/3", "3/3"}
	assert.Equal(t, want, byPhase[activity.StageUpgrade])
	assert.Equal(t, want, byPhase[activity.StageGroup])
}

func TestProvision_StageArgsReachEveryInstance(t *testing.T) {
	t.Parallel()
	ctx, _ := newTestContext(t, testConfig(), newFakeProvider(1), fakeActivities(&stageLog{}))

	rep, err := Provision(ctx, BuildRequest{BuildName: "web", Tag: "web", Count: 2})
	require.NoError(t, err)

	group := rep.Stages[1]
	for _, c := range group.Completions {
		args, ok := c.Task.Args.(activity.GroupInstallArgs)
		require.True(t, ok)
		assert.Equal(t, "base", args.Group)
		assert.Equal(t, "web", c.Task.BuildName)
		assert.Equal(t, "ubuntu", c.Task.Login)
		assert.Equal(t, "deploy", c.Task.Build.Key)
	}
}

func TestProvision_FailedInstanceContinues(t *testing.T) {
	t.Parallel()
	log := &stageLog{}
	acts := fakeActivities(log)
	boom := errors.New("apt lock held")
	acts.Upgrade.(*fakeActivity).fail = func(id string) error {
		if id == "1002" {
			return boom
		}
		return nil
	}
	ctx, obs := newTestContext(t, testConfig(), newFakeProvider(1), acts)

	rep, err := Provision(ctx, BuildRequest{BuildName: "web", Tag: "web", Count: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTasksFailed)

	failures := rep.Failures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, boom)
	assert.Equal(t, "1002", failures[0].Result.InstanceID)

	// The group stage still ran on both instances.
	assert.Contains(t, log.all(), "group:end:1002")
	assert.Len(t, rep.Stages[1].Completions, 2)

	failed := obs.EventsOf(EventTaskFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, []string{"upgrade done"}, failed[0].Lines)
	assert.Len(t, obs.EventsOf(EventPhaseFailed), 1)
}

func TestProvision_CycleLaunchesNothing(t *testing.T) {
	t.Parallel()
	p := newFakeProvider(1)
	ctx, obs := newTestContext(t, testConfig(), p, fakeActivities(&stageLog{}))

	rep, err := Provision(ctx, BuildRequest{BuildName: "bad", Tag: "bad", Count: 2})
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, bundle.ErrCycleDetected)
	assert.Zero(t, p.launchCalls())
	assert.NotEmpty(t, obs.EventsOf(EventValidationError))
}

func TestProvision_UnknownBuild(t *testing.T) {
	t.Parallel()
	p := newFakeProvider(1)
	ctx, _ := newTestContext(t, testConfig(), p, Activities{})

	_, err := Provision(ctx, BuildRequest{BuildName: "nope", Tag: "x", Count: 1})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "build", verrs[0].Field)
	assert.Zero(t, p.launchCalls())
}

func TestProvision_LaunchTimeoutSkipsStages(t *testing.T) {
	t.Parallel()
	log := &stageLog{}
	ctx, _ := newTestContext(t, testConfig(), newFakeProvider(0), fakeActivities(log))

	rep, err := Provision(ctx, BuildRequest{BuildName: "web", Tag: "web", Count: 1})
	require.ErrorIs(t, err, ErrLaunchTimeout)
	require.NotNil(t, rep)
	assert.Empty(t, rep.Stages)
	assert.Empty(t, log.all())
}

func TestRunStages_NoStages(t *testing.T) {
	t.Parallel()
	ctx, obs := newTestContext(t, testConfig(), newFakeProvider(1), Activities{})

	reports := RunStages(ctx, nil, []activity.Task{{InstanceID: "1"}})
	assert.Empty(t, reports)
	assert.Empty(t, obs.Events())
}

func TestTasksFor(t *testing.T) {
	t.Parallel()
	launch := &LaunchResult{
		BuildName:   "db",
		Build:       testConfig().Builds["db"],
		Login:       "ubuntu",
		InstanceIDs: []string{"7", "8"},
	}

	tasks := TasksFor(launch, "shop")
	require.Len(t, tasks, 2)
	for i, task := range tasks {
		assert.Equal(t, launch.InstanceIDs[i], task.InstanceID)
		assert.Equal(t, "shop", task.Project)
		assert.Equal(t, "tools", task.Build.Pip)
		assert.Nil(t, task.Args)
	}
}

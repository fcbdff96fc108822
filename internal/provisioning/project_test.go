package provisioning

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetboot/internal/config"
)

func TestLaunchProject_NumbersContinueAcrossBuilds(t *testing.T) {
	t.Parallel()
	p := newFakeProvider(1)
	ctx, _ := newTestContext(t, testConfig(), p, fakeActivities(&stageLog{}))

	rep, err := LaunchProject(ctx, "shop", "shop")
	require.NoError(t, err)
	require.Len(t, rep.Builds, 2)

	assert.Equal(t, []string{"shop-1", "shop-2"}, rep.Builds[0].Launch.Names)
	assert.Equal(t, []string{"shop-3"}, rep.Builds[1].Launch.Names)

	var names []string
	for _, n := range p.tags {
		names = append(names, n)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"shop-1", "shop-2", "shop-3"}, names)
	assert.Zero(t, rep.Failures())
}

func TestLaunchProject_SingleInstanceBuildIsNumbered(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Projects["solo"] = config.Project{Builds: []config.ProjectBuild{
		{Build: "db", Count: 1},
		{Build: "web", Count: 2},
	}}
	p := newFakeProvider(1)
	ctx, _ := newTestContext(t, cfg, p, fakeActivities(&stageLog{}))

	rep, err := LaunchProject(ctx, "solo", "shop")
	require.NoError(t, err)
	require.Len(t, rep.Builds, 2)

	assert.Equal(t, []string{"shop-1"}, rep.Builds[0].Launch.Names)
	assert.Equal(t, []string{"shop-2", "shop-3"}, rep.Builds[1].Launch.Names)
}

func TestLaunchProject_InvalidBuildLaunchesNothing(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Projects["mixed"] = config.Project{Builds: []config.ProjectBuild{
		{Build: "web", Count: 1},
		{Build: "bad", Count: 1},
		{Build: "ghost", Count: 1},
	}}
	p := newFakeProvider(1)
	ctx, _ := newTestContext(t, cfg, p, fakeActivities(&stageLog{}))

	_, err := LaunchProject(ctx, "mixed", "mixed")

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs), "got %v", err)
	assert.Len(t, verrs, 2)
	assert.Zero(t, p.launchCalls())
}

func TestLaunchProject_Unknown(t *testing.T) {
	t.Parallel()
	ctx, _ := newTestContext(t, testConfig(), newFakeProvider(1), Activities{})

	_, err := LaunchProject(ctx, "nope", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no project named "nope"`)
}

func TestLaunchProject_TaskFailures(t *testing.T) {
	t.Parallel()
	acts := fakeActivities(&stageLog{})
	acts.Pip.(*fakeActivity).fail = func(string) error { return errors.New("no pip") }
	ctx, _ := newTestContext(t, testConfig(), newFakeProvider(1), acts)

	rep, err := LaunchProject(ctx, "shop", "shop")
	require.ErrorIs(t, err, ErrTasksFailed)
	assert.Equal(t, 1, rep.Failures())
}

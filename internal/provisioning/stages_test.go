package provisioning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetboot/internal/bundle"
	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestPlanStages_AllStages(t *testing.T) {
	t.Parallel()
	scripts := t.TempDir()
	keys := t.TempDir()
	writeFile(t, scripts, "setup.sh", "#!/bin/sh\necho hi\n")
	writeFile(t, keys, "b.pub", "ssh-ed25519 BBBB bob")
	writeFile(t, keys, "a.pub", "ssh-ed25519 AAAA alice")
	writeFile(t, keys, "notes.txt", "ignored")

	cfg := testConfig()
	cfg.ScriptPath = scripts
	cfg.PubKeyPath = keys
	cfg.Preseeds = map[string][]string{"git": {"git git/x boolean true"}, "vim": {"unused"}}
	b := config.Build{
		Image:   "ubuntu",
		Upgrade: config.UpgradeModeDistUpgrade,
		Group:   "base",
		Pip:     "tools",
		Script:  &config.ScriptStage{Name: "setup.sh", User: "deploy", Template: true},
		User:    &config.UserStage{Name: "alice", Groups: []string{"docker"}, Sudo: true},
	}
	ctx, _ := newTestContext(t, cfg, newFakeProvider(1), fakeActivities(&stageLog{}))

	stages, err := PlanStages(ctx, "full", b)
	require.NoError(t, err)

	var names []string
	for _, s := range stages {
		names = append(names, s.Name)
		assert.NotNil(t, s.Activity, s.Name)
	}
	assert.Equal(t, activity.Stages, names)

	assert.Equal(t, activity.UpgradeArgs{Mode: config.UpgradeModeDistUpgrade}, stages[0].Args)

	group := stages[1].Args.(activity.GroupInstallArgs)
	assert.Equal(t, map[string][]string{"git": {"git git/x boolean true"}}, group.Preseeds)
	assert.Equal(t, []string{"curl", "git"}, bundle.Packages(group.Units))

	assert.Equal(t, []string{"httpie"}, stages[2].Args.(activity.PipInstallArgs).Packages)

	script := stages[3].Args.(activity.ScriptArgs)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(script.Contents))
	assert.Equal(t, "deploy", script.User)
	assert.True(t, script.Template)

	user := stages[4].Args.(activity.CreateUserArgs)
	assert.Equal(t, []string{"ssh-ed25519 AAAA alice", "ssh-ed25519 BBBB bob"}, user.PublicKeys)
	assert.True(t, user.Sudo)
}

func TestPlanStages_NoStages(t *testing.T) {
	t.Parallel()
	ctx, _ := newTestContext(t, testConfig(), newFakeProvider(1), Activities{})

	stages, err := PlanStages(ctx, "bare", config.Build{Image: "ubuntu"})
	require.NoError(t, err)
	assert.Empty(t, stages)
}

func TestPlanStages_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		build     config.Build
		wantField string
		wantIs    error
	}{
		{name: "upgrade mode", build: config.Build{Upgrade: "full-upgrade"}, wantField: "builds.x.upgrade"},
		{name: "cycle", build: config.Build{Group: "loop"}, wantField: "builds.x.group", wantIs: bundle.ErrCycleDetected},
		{name: "unknown group", build: config.Build{Group: "ghost"}, wantField: "builds.x.group", wantIs: bundle.ErrUnknownReference},
		{name: "unknown pip bundle", build: config.Build{Pip: "ghost"}, wantField: "builds.x.pip", wantIs: bundle.ErrUnknownReference},
		{name: "missing script", build: config.Build{Script: &config.ScriptStage{Name: "missing.sh"}}, wantField: "builds.x.script", wantIs: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.ScriptPath = t.TempDir()
			ctx, obs := newTestContext(t, cfg, newFakeProvider(1), fakeActivities(&stageLog{}))

			_, err := PlanStages(ctx, "x", tt.build)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.wantField, verrs[0].Field)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Len(t, obs.EventsOf(EventValidationError), 1)
		})
	}
}

func TestPlanStages_UserWithoutKeysWarns(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.PubKeyPath = t.TempDir()
	ctx, obs := newTestContext(t, cfg, newFakeProvider(1), fakeActivities(&stageLog{}))

	stages, err := PlanStages(ctx, "x", config.Build{User: &config.UserStage{Name: "alice"}})
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Empty(t, stages[0].Args.(activity.CreateUserArgs).PublicKeys)
	assert.Len(t, obs.EventsOf(EventValidationWarning), 1)
}

func TestPublicKeys_EmptyDir(t *testing.T) {
	t.Parallel()
	keys, err := PublicKeys("")
	require.NoError(t, err)
	assert.Nil(t, keys)
}

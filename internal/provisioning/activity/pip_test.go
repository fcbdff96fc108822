package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetboot/internal/platform/ssh"
)

func TestPipInstall_Run(t *testing.T) {
	t.Parallel()
	sess := newFakeSession(func(string) *ssh.ExecResult {
		return okResult(
			"Collecting requests",
			"Downloading requests-2.32.3-py3-none-any.whl (64 kB)",
			"Successfully installed requests-2.32.3 urllib3-2.2.3",
		)
	})
	env, _, _ := testEnv(sess)

	res, err := NewPipInstall(env).Run(context.Background(), testTask(PipInstallArgs{Bundle: "web", Packages: []string{"requests", "boto3>=1.34"}}))
	require.NoError(t, err)

	assert.Equal(t, []string{"sudo pip install requests 'boto3>=1.34'"}, sess.commands)
	assert.Equal(t, []string{
		"Installing python bundle web on 101",
		"Successfully installed requests-2.32.3 urllib3-2.2.3",
	}, res.Lines)
}

func TestPipInstall_NonZeroExit(t *testing.T) {
	t.Parallel()
	sess := newFakeSession(func(string) *ssh.ExecResult {
		return failResult(1, "ERROR: No matching distribution found for nope")
	})
	env, _, _ := testEnv(sess)

	_, err := NewPipInstall(env).Run(context.Background(), testTask(PipInstallArgs{Bundle: "web", Packages: []string{"nope"}}))

	var cmdErr *RemoteCommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 1, cmdErr.ExitStatus)
	assert.Equal(t, []string{"ERROR: No matching distribution found for nope"}, cmdErr.Lines)
}

func TestPipInstall_EmptyBundle(t *testing.T) {
	t.Parallel()
	env, dialer, _ := testEnv(newFakeSession(nil))
	_, err := NewPipInstall(env).Run(context.Background(), testTask(PipInstallArgs{Bundle: "empty"}))
	assert.ErrorContains(t, err, "python bundle empty is empty")
	assert.Empty(t, dialer.targets)
}

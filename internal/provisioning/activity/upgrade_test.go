package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetboot/internal/platform/ssh"
)

func TestUpgrade_Run(t *testing.T) {
	t.Parallel()
	sess := newFakeSession(func(cmd string) *ssh.ExecResult {
		if cmd == "sudo apt-get -s upgrade" {
			return okResult(
				"Reading package lists...",
				"The following packages will be upgraded:",
				"  openssl libssl3",
				"2 upgraded, 0 newly installed, 0 to remove and 0 not upgraded.",
			)
		}
		return okResult()
	})
	env, _, instances := testEnv(sess)

	res, err := NewUpgrade(env).Run(context.Background(), testTask(UpgradeArgs{Mode: "upgrade"}))
	require.NoError(t, err)

	require.Len(t, sess.commands, 4)
	assert.Equal(t, hostsCommand("web-1"), sess.commands[0])
	assert.Equal(t, "sudo apt-get -y update", sess.commands[1])
	assert.Equal(t, "sudo apt-get -s upgrade", sess.commands[2])
	assert.Equal(t, "sudo env DEBIAN_FRONTEND=noninteractive apt-get -y -o DPkg::Options::=--force-confnew upgrade", sess.commands[3])
	assert.True(t, sess.closed)
	assert.Empty(t, instances.rebooted)

	assert.Equal(t, "web-1", res.Instance)
	assert.Equal(t, StageUpgrade, res.Stage)
	assert.Contains(t, res.Lines, "The following packages will be upgraded:")
	assert.Contains(t, res.Lines, "  openssl libssl3")
	assert.NotContains(t, res.Lines, "Reading package lists...")
	assert.Contains(t, res.Lines, "UPGRADE complete")
}

func TestUpgrade_UpdateErrorStopsEarly(t *testing.T) {
	t.Parallel()
	sess := newFakeSession(func(cmd string) *ssh.ExecResult {
		if cmd == "sudo apt-get -y update" {
			return failResult(100, "E: Could not get lock /var/lib/apt/lists/lock")
		}
		return okResult()
	})
	env, _, _ := testEnv(sess)

	res, err := NewUpgrade(env).Run(context.Background(), testTask(UpgradeArgs{Mode: "dist-upgrade"}))

	var cmdErr *RemoteCommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "sudo apt-get -y update", cmdErr.Command)
	assert.Equal(t, []string{"E: Could not get lock /var/lib/apt/lists/lock"}, cmdErr.Lines)
	assert.Len(t, sess.commands, 2, "nothing runs after the failed update")
	assert.Contains(t, res.Lines, unableToContinue)
}

func TestUpgrade_DistUpgradeReboots(t *testing.T) {
	t.Parallel()
	sess := newFakeSession(nil)
	env, _, instances := testEnv(sess)

	res, err := NewUpgrade(env).Run(context.Background(), testTask(UpgradeArgs{Mode: "dist-upgrade"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"101"}, instances.rebooted)
	assert.Contains(t, res.Lines, "DIST-UPGRADE complete")
	assert.Contains(t, res.Lines, "Rebooting...")
}

func TestUpgrade_UnknownMode(t *testing.T) {
	t.Parallel()
	sess := newFakeSession(nil)
	env, dialer, _ := testEnv(sess)

	_, err := NewUpgrade(env).Run(context.Background(), testTask(UpgradeArgs{Mode: "full-upgrade"}))
	assert.ErrorContains(t, err, "unknown upgrade mode")
	assert.Empty(t, dialer.targets)
}

func TestHostsCommand(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		`grep -qxF '127.0.1.1 web-1' /etc/hosts || printf '%s\n' '### fleetboot' '127.0.1.1 web-1' | sudo tee -a /etc/hosts > /dev/null`,
		hostsCommand("web-1"))
}

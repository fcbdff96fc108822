package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/platform/ssh"
	"github.com/imamik/fleetboot/internal/util/retry"
)

const hostsMarker = "### fleetboot"

// UpgradeArgs selects the apt upgrade flavour.
type UpgradeArgs struct {
	// Mode is config.UpgradeModeUpgrade or config.UpgradeModeDistUpgrade.
	Mode string
}

// Upgrade refreshes package lists and upgrades installed packages. A
// dist-upgrade reboots the instance through the provider afterwards.
type Upgrade struct {
	env *Env
}

// NewUpgrade creates the upgrade activity.
func NewUpgrade(env *Env) *Upgrade {
	return &Upgrade{env: env}
}

// Name implements Activity.
func (u *Upgrade) Name() string { return StageUpgrade }

// Run implements Activity.
func (u *Upgrade) Run(ctx context.Context, task Task) (Result, error) {
	res := newResult(task, u.Name())
	args, ok := task.Args.(UpgradeArgs)
	if !ok {
		return res, argsError(u.Name(), task.Args)
	}
	if args.Mode != config.UpgradeModeUpgrade && args.Mode != config.UpgradeModeDistUpgrade {
		return res, fmt.Errorf("unknown upgrade mode %q", args.Mode)
	}

	res.add(fmt.Sprintf("Running %s on %s", args.Mode, task.InstanceID))

	sess, _, err := u.env.connect(ctx, task, &res, "", false)
	if err != nil {
		return res, err
	}
	defer func() { _ = sess.Close() }()

	if res.Instance != "" {
		if _, err := run(ctx, sess, &res, hostsCommand(res.Instance), nil, quiet); err != nil {
			return res, err
		}
		res.add("Hosts entry for " + res.Instance)
	}

	if _, err := run(ctx, sess, &res, "sudo apt-get -y update", nil, AptClassifier); err != nil {
		return res, err
	}
	res.add("Package lists updated")

	if _, err := run(ctx, sess, &res, "sudo apt-get -s upgrade", nil, UpgradePlanClassifier); err != nil {
		return res, err
	}

	cmd := "sudo env DEBIAN_FRONTEND=noninteractive apt-get -y -o DPkg::Options::=--force-confnew " + args.Mode
	if _, err := run(ctx, sess, &res, cmd, nil, AptClassifier); err != nil {
		return res, err
	}
	res.add(strings.ToUpper(args.Mode) + " complete")

	if args.Mode != config.UpgradeModeDistUpgrade {
		return res, nil
	}

	_ = sess.Close()
	res.add("Rebooting...")
	if err := u.env.Instances.RebootInstance(ctx, task.InstanceID); err != nil {
		return res, fmt.Errorf("failed to reboot instance %s: %w", task.InstanceID, err)
	}
	if err := retry.Sleep(ctx, u.env.RebootWait); err != nil {
		return res, err
	}
	return res, nil
}

// hostsCommand appends "127.0.1.1 <name>" to /etc/hosts unless present.
func hostsCommand(name string) string {
	entry := "127.0.1.1 " + name
	return fmt.Sprintf("grep -qxF %s /etc/hosts || printf '%%s\\n' %s %s | sudo tee -a /etc/hosts > /dev/null",
		ssh.Quote(entry), ssh.Quote(hostsMarker), ssh.Quote(entry))
}

package activity

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/imamik/fleetboot/internal/bundle"
	"github.com/imamik/fleetboot/internal/platform/ssh"
)

const keyringDir = "/etc/apt/keyrings"

// GroupInstallArgs is a resolved group ready for installation.
type GroupInstallArgs struct {
	Group string
	Units []bundle.Unit
	// Preseeds maps a package to its debconf-set-selections lines.
	Preseeds map[string][]string
}

// GroupInstall installs the units of a resolved group in order, stopping
// at the first hard error.
type GroupInstall struct {
	env *Env
}

// NewGroupInstall creates the group install activity.
func NewGroupInstall(env *Env) *GroupInstall {
	return &GroupInstall{env: env}
}

// Name implements Activity.
func (g *GroupInstall) Name() string { return StageGroup }

// Run implements Activity.
func (g *GroupInstall) Run(ctx context.Context, task Task) (Result, error) {
	res := newResult(task, g.Name())
	args, ok := task.Args.(GroupInstallArgs)
	if !ok {
		return res, argsError(g.Name(), task.Args)
	}

	res.add(fmt.Sprintf("Installing group %s on %s", args.Group, task.InstanceID))

	sess, _, err := g.env.connect(ctx, task, &res, "", false)
	if err != nil {
		return res, err
	}
	defer func() { _ = sess.Close() }()

	for _, unit := range args.Units {
		var err error
		switch unit.Kind {
		case bundle.KindApt:
			err = installRepo(ctx, sess, &res, unit)
		case bundle.KindPPA:
			err = installPPA(ctx, sess, &res, unit)
		default:
			err = installPackages(ctx, sess, &res, unit, args.Preseeds)
		}
		if err != nil {
			return res, fmt.Errorf("group %s: %s: %w", args.Group, unit.Label, err)
		}
	}
	return res, nil
}

func installPackages(ctx context.Context, sess Session, res *Result, unit bundle.Unit, preseeds map[string][]string) error {
	if len(unit.Packages) == 0 {
		return nil
	}

	var selections []string
	for _, p := range unit.Packages {
		selections = append(selections, preseeds[p]...)
	}

	cmd := "sudo apt-get -y install " + quoteAll(unit.Packages)
	if len(selections) > 0 {
		input := []byte(strings.Join(selections, "\n") + "\n")
		if _, err := run(ctx, sess, res, "sudo debconf-set-selections", input, AptClassifier); err != nil {
			return err
		}
		cmd = "sudo env DEBIAN_FRONTEND=noninteractive apt-get -y install " + quoteAll(unit.Packages)
	}

	if _, err := run(ctx, sess, res, cmd, nil, AptClassifier); err != nil {
		return err
	}

	if unit.Kind == bundle.KindPackages {
		res.add("Installed packages: " + strings.Join(unit.Packages, " "))
	} else {
		res.add("Installed bundle: " + unit.Label)
	}
	return nil
}

func installRepo(ctx context.Context, sess Session, res *Result, unit bundle.Unit) error {
	repo := unit.Repo
	if repo == nil {
		return fmt.Errorf("apt unit %s has no repository", unit.Label)
	}
	keyring := path.Join(keyringDir, unit.Label+".gpg")

	var keyCmd string
	if repo.PublicKey != "" {
		keyCmd = fmt.Sprintf("sudo install -m 0755 -d %s && curl -fsSL %s | sudo gpg --dearmor --yes -o %s",
			keyringDir, ssh.Quote(repo.PublicKey), keyring)
	} else {
		keyCmd = fmt.Sprintf("sudo install -m 0755 -d %s && sudo gpg --no-default-keyring --keyring %s --keyserver hkps://keyserver.ubuntu.com --recv-keys %s",
			keyringDir, keyring, ssh.Quote(repo.Keyserver))
	}
	if _, err := run(ctx, sess, res, keyCmd, nil, quiet); err != nil {
		return err
	}

	deb := repo.Deb
	if !strings.HasPrefix(deb, "[") {
		deb = fmt.Sprintf("[signed-by=%s] %s", keyring, deb)
	}
	list := path.Join("/etc/apt/sources.list.d", unit.Label+".list")
	if err := sess.Upload(ctx, list, []byte("deb "+deb+"\n"), 0644, true); err != nil {
		return err
	}

	if _, err := run(ctx, sess, res, "sudo apt-get -y update", nil, AptClassifier); err != nil {
		return err
	}
	if _, err := run(ctx, sess, res, "sudo apt-get -y install "+ssh.Quote(repo.Package), nil, AptClassifier); err != nil {
		return err
	}
	res.add(fmt.Sprintf("Installed %s from apt repository %s", repo.Package, unit.Label))
	return nil
}

func installPPA(ctx context.Context, sess Session, res *Result, unit bundle.Unit) error {
	if _, err := run(ctx, sess, res, "sudo add-apt-repository -y "+ssh.Quote("ppa:"+unit.PPA), nil, AptClassifier); err != nil {
		return err
	}
	res.add("Added ppa: " + unit.PPA)
	return nil
}

func quoteAll(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = ssh.Quote(w)
	}
	return strings.Join(quoted, " ")
}

package activity

import (
	"context"
	"fmt"
)

// PipInstallArgs is a python bundle to install system-wide.
type PipInstallArgs struct {
	Bundle   string
	Packages []string
}

// PipInstall installs a python bundle with one pip invocation.
type PipInstall struct {
	env *Env
}

// NewPipInstall creates the pip install activity.
func NewPipInstall(env *Env) *PipInstall {
	return &PipInstall{env: env}
}

// Name implements Activity.
func (p *PipInstall) Name() string { return StagePip }

// Run implements Activity.
func (p *PipInstall) Run(ctx context.Context, task Task) (Result, error) {
	res := newResult(task, p.Name())
	args, ok := task.Args.(PipInstallArgs)
	if !ok {
		return res, argsError(p.Name(), task.Args)
	}
	if len(args.Packages) == 0 {
		return res, fmt.Errorf("python bundle %s is empty", args.Bundle)
	}

	res.add(fmt.Sprintf("Installing python bundle %s on %s", args.Bundle, task.InstanceID))

	sess, _, err := p.env.connect(ctx, task, &res, "", false)
	if err != nil {
		return res, err
	}
	defer func() { _ = sess.Close() }()

	if _, err := run(ctx, sess, &res, "sudo pip install "+quoteAll(args.Packages), nil, PipClassifier); err != nil {
		return res, err
	}
	return res, nil
}

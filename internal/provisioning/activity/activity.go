package activity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/fleetboot/internal/compute"
	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/platform/ssh"
	"github.com/imamik/fleetboot/internal/util/labels"
)

// Stage names, in the order the pipeline runs them.
const (
	StageUpgrade = "upgrade"
	StageGroup   = "group"
	StagePip     = "pip"
	StageScript  = "script"
	StageUser    = "user"
)

// Stages lists every stage in execution order.
var Stages = []string{StageUpgrade, StageGroup, StagePip, StageScript, StageUser}

const defaultLogin = "root"

// Task is one unit of work: one activity against one instance.
type Task struct {
	Build     *config.Build
	BuildName string
	Project   string
	// Login overrides the login user recorded on the instance.
	Login      string
	InstanceID string
	// Args holds the activity specific arguments, e.g. UpgradeArgs.
	Args any
}

// Result is what one activity produced on one instance.
type Result struct {
	InstanceID string
	Instance   string
	Stage      string
	Lines      []string
}

func (r *Result) add(lines ...string) {
	r.Lines = append(r.Lines, lines...)
}

// Activity is a remote setup step.
type Activity interface {
	Name() string
	Run(ctx context.Context, task Task) (Result, error)
}

// Session is an open shell connection to one instance.
type Session interface {
	Exec(ctx context.Context, cmd string) (*ssh.ExecResult, error)
	ExecInput(ctx context.Context, cmd string, input []byte) (*ssh.ExecResult, error)
	Upload(ctx context.Context, path string, data []byte, mode os.FileMode, sudo bool) error
	RunAndWait(ctx context.Context, cmd string, poll time.Duration) (*ssh.ExecResult, error)
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, target ssh.Target) (Session, error)
}

// Instances is the part of the compute provider activities need.
type Instances interface {
	DescribeInstance(ctx context.Context, id string) (*compute.Instance, error)
	RebootInstance(ctx context.Context, id string) error
}

// KeyLoader returns the private key stored under name. A nil key with a
// nil error means the ssh-agent should be used instead.
type KeyLoader func(name string) ([]byte, error)

// KeyFiles loads keys from <cfg.KeyPath>/<name>.pem.
func KeyFiles(cfg *config.Config) KeyLoader {
	return func(name string) ([]byte, error) {
		data, err := os.ReadFile(cfg.KeyFile(name))
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read key %s: %w", name, err)
		}
		return data, nil
	}
}

// Env carries the collaborators shared by every activity.
type Env struct {
	Instances Instances
	Dialer    Dialer
	Keys      KeyLoader

	// ScriptPoll is how often a running script is checked for completion.
	ScriptPoll time.Duration
	// RebootWait is how long to wait after a dist-upgrade reboot.
	RebootWait time.Duration

	// Logger receives connection diagnostics. The zero value discards.
	Logger logr.Logger
}

// connect describes the task's instance and opens a session as user,
// returning the session and the user it logged in as. An empty user means
// the task login, then the instance login label, then root.
func (e *Env) connect(ctx context.Context, task Task, res *Result, user string, forwardAgent bool) (Session, string, error) {
	inst, err := e.Instances.DescribeInstance(ctx, task.InstanceID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to describe instance %s: %w", task.InstanceID, err)
	}
	res.Instance = inst.Name

	if user == "" {
		user = loginFor(task, inst)
	}
	if inst.PublicIP == "" {
		return nil, "", &ConnectionError{InstanceID: task.InstanceID, User: user, Err: ErrNoAddress}
	}

	var key []byte
	if name := keyFor(task, inst); name != "" && e.Keys != nil {
		key, err = e.Keys(name)
		if err != nil {
			return nil, "", err
		}
	}

	e.Logger.V(1).Info("connecting", "instance", task.InstanceID, "host", inst.PublicIP, "user", user)
	sess, err := e.Dialer.Dial(ctx, ssh.Target{
		Host:         inst.PublicIP,
		User:         user,
		PrivateKey:   key,
		ForwardAgent: forwardAgent,
	})
	if err != nil {
		return nil, "", &ConnectionError{InstanceID: task.InstanceID, Host: inst.PublicIP, User: user, Err: err}
	}
	return sess, user, nil
}

func loginFor(task Task, inst *compute.Instance) string {
	if task.Login != "" {
		return task.Login
	}
	if l := inst.Labels[labels.KeyLogin]; l != "" {
		return l
	}
	return defaultLogin
}

// keyFor returns the build's key, falling back to the key the instance
// was launched with.
func keyFor(task Task, inst *compute.Instance) string {
	if task.Build != nil && task.Build.Key != "" {
		return task.Build.Key
	}
	return inst.Labels[labels.KeySSHKey]
}

func newResult(task Task, stage string) Result {
	return Result{InstanceID: task.InstanceID, Stage: stage}
}

// SSHDialer adapts an *ssh.Dialer to Dialer.
type SSHDialer struct {
	Dialer *ssh.Dialer
}

// Dial implements Dialer.
func (d SSHDialer) Dial(ctx context.Context, target ssh.Target) (Session, error) {
	s, err := d.Dialer.Connect(ctx, target)
	if err != nil {
		return nil, err
	}
	return s, nil
}

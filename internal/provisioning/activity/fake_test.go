package activity

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/imamik/fleetboot/internal/compute"
	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/platform/ssh"
	"github.com/imamik/fleetboot/internal/util/labels"
)

// upload records one Session.Upload call.
type upload struct {
	Path string
	Data []byte
	Mode os.FileMode
	Sudo bool
}

// fakeSession records commands and answers them from a responder.
type fakeSession struct {
	mu       sync.Mutex
	respond  func(cmd string) *ssh.ExecResult
	commands []string
	inputs   map[string][]byte
	uploads  []upload
	waited   []string
	closed   bool
}

func newFakeSession(respond func(cmd string) *ssh.ExecResult) *fakeSession {
	if respond == nil {
		respond = func(string) *ssh.ExecResult { return &ssh.ExecResult{} }
	}
	return &fakeSession{respond: respond, inputs: map[string][]byte{}}
}

func (f *fakeSession) Exec(_ context.Context, cmd string) (*ssh.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return f.respond(cmd), nil
}

func (f *fakeSession) ExecInput(ctx context.Context, cmd string, input []byte) (*ssh.ExecResult, error) {
	f.mu.Lock()
	f.inputs[cmd] = input
	f.mu.Unlock()
	return f.Exec(ctx, cmd)
}

func (f *fakeSession) Upload(_ context.Context, path string, data []byte, mode os.FileMode, sudo bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, upload{Path: path, Data: data, Mode: mode, Sudo: sudo})
	return nil
}

func (f *fakeSession) RunAndWait(_ context.Context, cmd string, _ time.Duration) (*ssh.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waited = append(f.waited, cmd)
	return f.respond(cmd), nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// commandsWithPrefix returns the recorded commands starting with prefix.
func (f *fakeSession) commandsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

type fakeDialer struct {
	session *fakeSession
	err     error
	targets []ssh.Target
}

func (d *fakeDialer) Dial(_ context.Context, target ssh.Target) (Session, error) {
	d.targets = append(d.targets, target)
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

type fakeInstances struct {
	instances map[string]*compute.Instance
	rebooted  []string
}

func (f *fakeInstances) DescribeInstance(_ context.Context, id string) (*compute.Instance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, errors.New("server not found")
	}
	return inst, nil
}

func (f *fakeInstances) RebootInstance(_ context.Context, id string) error {
	f.rebooted = append(f.rebooted, id)
	return nil
}

// testEnv wires one running instance "101" named web-1 to a fake session.
func testEnv(sess *fakeSession) (*Env, *fakeDialer, *fakeInstances) {
	instances := &fakeInstances{instances: map[string]*compute.Instance{
		"101": {
			ID:       "101",
			Name:     "web-1",
			PublicIP: "203.0.113.10",
			Status:   compute.StatusRunning,
			Labels:   map[string]string{labels.KeyLogin: "ubuntu"},
		},
	}}
	dialer := &fakeDialer{session: sess}
	env := &Env{
		Instances: instances,
		Dialer:    dialer,
		Keys: func(name string) ([]byte, error) {
			return []byte("key:" + name), nil
		},
		ScriptPoll: time.Millisecond,
	}
	return env, dialer, instances
}

func testTask(args any) Task {
	return Task{
		Build:      &config.Build{Key: "deploy"},
		BuildName:  "web",
		Project:    "shop",
		InstanceID: "101",
		Args:       args,
	}
}

func okResult(stdout ...string) *ssh.ExecResult {
	return &ssh.ExecResult{Stdout: stdout}
}

func failResult(status int, stderr ...string) *ssh.ExecResult {
	return &ssh.ExecResult{Stderr: stderr, ExitStatus: status}
}

package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/imamik/fleetboot/internal/bundle"
	"github.com/imamik/fleetboot/internal/compute"
	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/dispatch"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

// MockObserver records events. Observers derived through WithFields share
// the recorded events with their parent.
type MockObserver struct {
	sink   *observerSink
	fields map[string]string
}

type observerSink struct {
	mu       sync.Mutex
	events   []Event
	messages []string
}

func NewMockObserver() *MockObserver {
	return &MockObserver{sink: &observerSink{}, fields: map[string]string{}}
}

func (m *MockObserver) Printf(format string, v ...interface{}) {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.messages = append(m.sink.messages, fmt.Sprintf(format, v...))
}

func (m *MockObserver) Event(event Event) {
	if event.Fields == nil {
		event.Fields = map[string]string{}
	}
	for k, v := range m.fields {
		if _, ok := event.Fields[k]; !ok {
			event.Fields[k] = v
		}
	}
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.events = append(m.sink.events, event)
}

func (m *MockObserver) Progress(phase string, current, total int) {
	m.Event(Event{Type: EventProgress, Phase: phase, Message: fmt.Sprintf("%d/%d", current, total)})
}

func (m *MockObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(m.fields)+len(fields))
	for k, v := range m.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &MockObserver{sink: m.sink, fields: merged}
}

func (m *MockObserver) Events() []Event {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	return append([]Event(nil), m.sink.events...)
}

func (m *MockObserver) EventsOf(typ EventType) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// fakeProvider launches instances that report running from round
// runningFrom on. A zero runningFrom keeps them pending forever.
type fakeProvider struct {
	mu          sync.Mutex
	runningFrom int
	launchErr   error
	tagErr      error
	// created is how many instances exist when launchErr is returned.
	created int
	// statusFailures is how many status lookups per instance fail first.
	statusFailures int

	nextID   int
	specs    []compute.LaunchSpec
	polls    map[string]int
	tags     map[string]string
	labels   map[string]map[string]string
	launched []string

	found     []*compute.Instance
	findErr   error
	selectors []string
}

func newFakeProvider(runningFrom int) *fakeProvider {
	return &fakeProvider{
		runningFrom: runningFrom,
		nextID:      1000,
		polls:       map[string]int{},
		tags:        map[string]string{},
		labels:      map[string]map[string]string{},
	}
}

func (p *fakeProvider) LaunchInstances(_ context.Context, spec compute.LaunchSpec) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.specs = append(p.specs, spec)
	if p.launchErr != nil {
		if p.created == 0 {
			return nil, p.launchErr
		}
		partial := &compute.PartialLaunchError{Err: p.launchErr}
		for i := range p.created {
			p.nextID++
			partial.Created = append(partial.Created, strconv.Itoa(p.nextID))
			partial.Names = append(partial.Names, fmt.Sprintf("%s-tmp-%d", spec.Tag, i+1))
		}
		return partial.Created, partial
	}
	ids := make([]string, spec.Count)
	for i := range ids {
		p.nextID++
		ids[i] = strconv.Itoa(p.nextID)
		p.launched = append(p.launched, ids[i])
	}
	return ids, nil
}

func (p *fakeProvider) InstanceStatus(_ context.Context, id string) (compute.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls[id]++
	if p.polls[id] <= p.statusFailures {
		return compute.StatusUnknown, errors.New("rate limit exceeded")
	}
	if p.runningFrom > 0 && p.polls[id] >= p.runningFrom {
		return compute.StatusRunning, nil
	}
	return compute.StatusPending, nil
}

func (p *fakeProvider) TagInstance(_ context.Context, id, name string, labels map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tagErr != nil {
		return p.tagErr
	}
	p.tags[id] = name
	p.labels[id] = labels
	return nil
}

func (p *fakeProvider) DescribeInstance(_ context.Context, id string) (*compute.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &compute.Instance{ID: id, Name: p.tags[id], PublicIP: "203.0.113." + id[len(id)-1:], Status: compute.StatusRunning}, nil
}

func (p *fakeProvider) FindInstances(_ context.Context, selector string) ([]*compute.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectors = append(p.selectors, selector)
	return p.found, p.findErr
}

func (p *fakeProvider) RebootInstance(context.Context, string) error { return nil }

func (p *fakeProvider) launchCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.specs)
}

// stageLog records activity start and end marks across stages.
type stageLog struct {
	mu    sync.Mutex
	marks []string
}

func (l *stageLog) add(mark string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marks = append(l.marks, mark)
}

func (l *stageLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.marks...)
}

// fakeActivity records every task it runs. fail, when set, decides which
// instances fail; delay, when set, decides how long each task takes.
type fakeActivity struct {
	name  string
	log   *stageLog
	fail  func(id string) error
	delay func(id string) time.Duration
}

func (a *fakeActivity) Name() string { return a.name }

func (a *fakeActivity) Run(ctx context.Context, task activity.Task) (activity.Result, error) {
	a.log.add(a.name + ":start:" + task.InstanceID)
	if a.delay != nil {
		select {
		case <-time.After(a.delay(task.InstanceID)):
		case <-ctx.Done():
			return activity.Result{}, ctx.Err()
		}
	}
	a.log.add(a.name + ":end:" + task.InstanceID)
	res := activity.Result{Instance: "inst-" + task.InstanceID, Lines: []string{a.name + " done"}}
	if a.fail != nil {
		if err := a.fail(task.InstanceID); err != nil {
			return res, err
		}
	}
	return res, nil
}

func fakeActivities(log *stageLog) Activities {
	return Activities{
		Upgrade: &fakeActivity{name: activity.StageUpgrade, log: log},
		Group:   &fakeActivity{name: activity.StageGroup, log: log},
		Pip:     &fakeActivity{name: activity.StagePip, log: log},
		Script:  &fakeActivity{name: activity.StageScript, log: log},
		User:    &fakeActivity{name: activity.StageUser, log: log},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Images: map[string]config.Image{
			"ubuntu": {Name: "ubuntu-24.04", Login: "ubuntu"},
		},
		Groups: map[string][]bundle.Item{
			"base": {{Packages: []string{"curl", "git"}}},
			"loop": {{Group: "loop"}},
		},
		PythonBundles: map[string][]string{
			"tools": {"httpie"},
		},
		Builds: map[string]config.Build{
			"web": {Size: "cx22", Image: "ubuntu", Key: "deploy", Upgrade: config.UpgradeModeUpgrade, Group: "base"},
			"db":  {Size: "cx32", Image: "ubuntu", Key: "deploy", Pip: "tools"},
			"bad": {Size: "cx22", Image: "ubuntu", Group: "loop"},
		},
		Projects: map[string]config.Project{
			"shop": {Builds: []config.ProjectBuild{{Build: "web", Count: 2}, {Build: "db", Count: 1}}},
		},
	}
}

func newTestContext(t *testing.T, cfg *config.Config, p *fakeProvider, acts Activities) (*Context, *MockObserver) {
	t.Helper()
	obs := NewMockObserver()
	return &Context{
		Context:    context.Background(),
		Config:     cfg,
		Provider:   p,
		Activities: acts,
		Dispatcher: dispatch.New(),
		Observer:   obs,
		Timeouts: &config.Timeouts{
			LaunchPollInterval: time.Millisecond,
			LaunchPollRounds:   3,
		},
		RunID: "3f2a9c1e-0000-4000-8000-000000000001",
	}, obs
}

package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetboot/internal/compute"
	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/metrics"
	"github.com/imamik/fleetboot/internal/platform/s3"
	"github.com/imamik/fleetboot/internal/provisioning"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

const testConfigYAML = `
key_path: %[1]s/keys
pub_key_path: %[1]s/pub
script_path: %[1]s/scripts
images:
  ubuntu:
    name: ubuntu-24.04
    login: ubuntu
bundles:
  base: [curl]
groups:
  base:
    - bundle: base
python_bundles:
  tools: [httpie]
builds:
  web:
    size: cx22
    image: ubuntu
    key: deploy
    upgrade: upgrade
    group: base
  db:
    size: cx32
    image: ubuntu
    key: deploy
    pip: tools
projects:
  shop:
    builds:
      - build: web
        count: 2
      - build: db
        count: 1
storage:
  endpoint: https://s3.example.test
  access_key: access
  secret_key: secret
  report_bucket: reports
metrics:
  pushgateway_url: http://push.example.test
`

// testEnv holds the fakes installed by setupHandlers.
type testEnv struct {
	dir      string
	config   string
	provider *fakeProvider
	store    *fakeStore
	acts     *recordingActivities
	out      *bytes.Buffer
	pushes   []string
}

// setupHandlers writes a config file, installs fakes for every factory and
// restores the originals when the test ends.
func setupHandlers(t *testing.T) *testEnv {
	t.Helper()
	saveAndRestoreFactories(t)
	t.Setenv("HCLOUD_TOKEN", "test-token")
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("FLEETBOOT_S3_ACCESS_KEY", "")
	t.Setenv("FLEETBOOT_S3_SECRET_KEY", "")
	t.Setenv("FLEETBOOT_S3_ENDPOINT", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "fleetboot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(testConfigYAML, dir)), 0o600))

	env := &testEnv{
		dir:      dir,
		config:   path,
		provider: newFakeProvider(),
		store:    newFakeStore(),
		acts:     &recordingActivities{runs: map[string][]string{}},
		out:      &bytes.Buffer{},
	}

	newProvider = func(string, *config.Timeouts) Provider { return env.provider }
	newObjectStore = func(context.Context, s3.Options) (ObjectStore, error) { return env.store, nil }
	newProvisioningContext = func(ctx context.Context, cfg *config.Config, p provisioning.ComputeProvider, e *activity.Env, rec *metrics.Recorder) *provisioning.Context {
		pctx := provisioning.NewContext(ctx, cfg, p, e, rec)
		pctx.Activities = env.acts.activities()
		pctx.Observer = provisioning.NewConsoleObserverTo(io.Discard, false)
		pctx.Timeouts.LaunchPollInterval = time.Millisecond
		return pctx
	}
	pushMetrics = func(_ context.Context, url, job, run string, _ prometheus.Gatherer) error {
		env.pushes = append(env.pushes, url+"|"+job+"|"+run)
		return nil
	}
	isInteractive = func() bool { return false }
	confirm = func(context.Context, string) (bool, error) { return false, errors.New("unexpected prompt") }
	stdout = env.out
	return env
}

func (e *testEnv) globals() Globals {
	return Globals{ConfigPath: e.config}
}

func saveAndRestoreFactories(t *testing.T) {
	t.Helper()
	origNewProvider := newProvider
	origNewObjectStore := newObjectStore
	origNewDialer := newDialer
	origNewProvisioningContext := newProvisioningContext
	origPushMetrics := pushMetrics
	origLoadConfigFile := loadConfigFile
	origFindConfigFile := findConfigFile
	origConfirm := confirm
	origIsInteractive := isInteractive
	origStdout := stdout
	origWriteFile := writeFile
	origReadFile := readFile
	origGenerateKey := generateKey

	t.Cleanup(func() {
		newProvider = origNewProvider
		newObjectStore = origNewObjectStore
		newDialer = origNewDialer
		newProvisioningContext = origNewProvisioningContext
		pushMetrics = origPushMetrics
		loadConfigFile = origLoadConfigFile
		findConfigFile = origFindConfigFile
		confirm = origConfirm
		isInteractive = origIsInteractive
		stdout = origStdout
		writeFile = origWriteFile
		readFile = origReadFile
		generateKey = origGenerateKey
	})
}

// fakeProvider launches instances that are running immediately.
type fakeProvider struct {
	mu        sync.Mutex
	nextID    int
	launched  []compute.LaunchSpec
	names     map[string]string
	found     []*compute.Instance
	selectors []string

	keys      map[string]string
	createErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{nextID: 100, names: map[string]string{}, keys: map[string]string{}}
}

func (p *fakeProvider) LaunchInstances(_ context.Context, spec compute.LaunchSpec) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.launched = append(p.launched, spec)
	ids := make([]string, spec.Count)
	for i := range ids {
		p.nextID++
		ids[i] = strconv.Itoa(p.nextID)
	}
	return ids, nil
}

func (p *fakeProvider) InstanceStatus(context.Context, string) (compute.Status, error) {
	return compute.StatusRunning, nil
}

func (p *fakeProvider) TagInstance(_ context.Context, id, name string, _ map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names[id] = name
	return nil
}

func (p *fakeProvider) DescribeInstance(_ context.Context, id string) (*compute.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &compute.Instance{ID: id, Name: p.names[id], PublicIP: "198.51.100.7", Status: compute.StatusRunning}, nil
}

func (p *fakeProvider) FindInstances(_ context.Context, selector string) ([]*compute.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectors = append(p.selectors, selector)
	return p.found, nil
}

func (p *fakeProvider) RebootInstance(context.Context, string) error { return nil }

func (p *fakeProvider) CreateSSHKey(_ context.Context, name, publicKey string, _ map[string]string) (string, error) {
	if p.createErr != nil {
		return "", p.createErr
	}
	p.keys[name] = publicKey
	return "42", nil
}

func (p *fakeProvider) SSHKeyExists(_ context.Context, name string) (bool, error) {
	_, ok := p.keys[name]
	return ok, nil
}

func (p *fakeProvider) launchedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.launched {
		n += s.Count
	}
	return n
}

// fakeStore keeps objects in memory.
type fakeStore struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	types    map[string]string
	deleted  []string
	putErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStore) CreateBucket(_ context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucket] = true
	return nil
}

func (s *fakeStore) DeleteBucket(_ context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, bucket)
	s.deleted = append(s.deleted, bucket)
	return nil
}

func (s *fakeStore) ListObjects(_ context.Context, bucket, prefix string) ([]s3.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []s3.Object
	for k, v := range s.objects {
		key, ok := strings.CutPrefix(k, bucket+"/")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, s3.Object{Key: key, Size: int64(len(v)), LastModified: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *fakeStore) PutObject(_ context.Context, bucket, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[bucket+"/"+key] = data
	s.types[bucket+"/"+key] = contentType
	return nil
}

func (s *fakeStore) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object s3://%s/%s not found", bucket, key)
	}
	return data, nil
}

func (s *fakeStore) DeleteObject(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	s.deleted = append(s.deleted, bucket+"/"+key)
	return nil
}

func (s *fakeStore) PutReport(ctx context.Context, bucket, runID, build string, report []byte) (string, error) {
	key := s3.ReportKey(runID, build)
	if err := s.PutObject(ctx, bucket, key, report, "application/yaml"); err != nil {
		return "", err
	}
	return key, nil
}

func (s *fakeStore) ListRuns(_ context.Context, bucket string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket == "reports" {
		return []string{"run-a", "run-b"}, nil
	}
	return nil, nil
}

func (s *fakeStore) object(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

// recordingActivities records which instances each stage ran on. Instances
// listed in fail return an error.
type recordingActivities struct {
	mu   sync.Mutex
	runs map[string][]string
	fail map[string]bool
}

func (r *recordingActivities) activities() provisioning.Activities {
	return provisioning.Activities{
		Upgrade: &recordingActivity{name: activity.StageUpgrade, rec: r},
		Group:   &recordingActivity{name: activity.StageGroup, rec: r},
		Pip:     &recordingActivity{name: activity.StagePip, rec: r},
		Script:  &recordingActivity{name: activity.StageScript, rec: r},
		User:    &recordingActivity{name: activity.StageUser, rec: r},
	}
}

func (r *recordingActivities) ran(stage string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs[stage]...)
}

type recordingActivity struct {
	name string
	rec  *recordingActivities
}

func (a *recordingActivity) Name() string { return a.name }

func (a *recordingActivity) Run(_ context.Context, task activity.Task) (activity.Result, error) {
	a.rec.mu.Lock()
	a.rec.runs[a.name] = append(a.rec.runs[a.name], task.InstanceID)
	fail := a.rec.fail[task.InstanceID]
	a.rec.mu.Unlock()

	res := activity.Result{InstanceID: task.InstanceID, Stage: a.name, Lines: []string{a.name + " ok"}}
	if fail {
		return res, errors.New("exit status 100")
	}
	return res, nil
}

func removeLine(s, substr string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if !strings.Contains(l, substr) {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

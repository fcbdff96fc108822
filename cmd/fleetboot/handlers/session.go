// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework; every external dependency is reached
// through a factory variable that tests replace.
package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/fleetboot/internal/compute"
	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/metrics"
	"github.com/imamik/fleetboot/internal/platform/hcloud"
	"github.com/imamik/fleetboot/internal/platform/s3"
	"github.com/imamik/fleetboot/internal/platform/ssh"
	"github.com/imamik/fleetboot/internal/provisioning"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

// Globals holds the flags every command accepts.
type Globals struct {
	ConfigPath string
	Verbose    int
}

// Provider is the Hetzner Cloud API used by the handlers.
type Provider interface {
	compute.Provider
	CreateSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (string, error)
	SSHKeyExists(ctx context.Context, name string) (bool, error)
}

// ObjectStore is the object storage API used by the handlers.
type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error
	DeleteBucket(ctx context.Context, bucket string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]s3.Object, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	PutReport(ctx context.Context, bucket, runID, build string, report []byte) (string, error)
	ListRuns(ctx context.Context, bucket string) ([]string, error)
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newProvider creates the Hetzner Cloud client.
	newProvider = func(token string, timeouts *config.Timeouts) Provider {
		return hcloud.NewRealClient(token, hcloud.WithTimeouts(timeouts))
	}

	// newObjectStore creates the S3 client.
	newObjectStore = func(ctx context.Context, opts s3.Options) (ObjectStore, error) {
		return s3.NewClient(ctx, opts)
	}

	// newDialer creates the SSH dialer shared by all activities.
	newDialer = func(cfg ssh.Config) activity.Dialer {
		return activity.SSHDialer{Dialer: ssh.NewDialer(cfg)}
	}

	// newProvisioningContext creates the provisioning context.
	newProvisioningContext = provisioning.NewContext

	// pushMetrics sends the run metrics to the Pushgateway.
	pushMetrics = metrics.Push

	// loadConfigFile loads config from file (for testing injection).
	loadConfigFile = config.Load

	// findConfigFile resolves the config path (for testing injection).
	findConfigFile = config.FindConfigFile

	// confirm asks a yes/no question on the terminal.
	confirm = promptConfirm

	// isInteractive reports whether stdin is a terminal.
	isInteractive = func() bool {
		fd := os.Stdin.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}

	// stdout receives command output.
	stdout io.Writer = os.Stdout
)

// loadConfig resolves and loads the configuration file.
func loadConfig(configPath string) (*config.Config, error) {
	path, err := findConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("no config file found: %w", err)
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// newLogger returns a logr.Logger writing to stderr. Higher verbosity
// enables more V-levels.
func newLogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			log.Printf("%s: %s", prefix, args)
			return
		}
		log.Print(args)
	}, funcr.Options{Verbosity: verbosity})
}

// session bundles what one provisioning command needs.
type session struct {
	cfg      *config.Config
	pctx     *provisioning.Context
	registry *prometheus.Registry
	log      logr.Logger
}

// newSession loads the configuration and wires the provider, dialer,
// activities and metrics into a provisioning context.
func newSession(ctx context.Context, g Globals) (*session, error) {
	cfg, err := loadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	token := os.Getenv("HCLOUD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("HCLOUD_TOKEN is not set")
	}

	logger := newLogger(g.Verbose)
	timeouts := config.LoadTimeouts()
	provider := newProvider(token, timeouts)
	registry, recorder := metrics.NewRegistry()

	env := &activity.Env{
		Instances: provider,
		Dialer: newDialer(ssh.Config{
			MaxRetries: timeouts.SSHMaxRetries,
			RetryDelay: timeouts.SSHRetryDelay,
			MaxDelay:   timeouts.SSHMaxDelay,
			Logger:     logger.WithName("ssh"),
		}),
		Keys:       activity.KeyFiles(cfg),
		ScriptPoll: timeouts.ScriptPollInterval,
		RebootWait: timeouts.RebootWait,
		Logger:     logger.WithName("activity"),
	}

	pctx := newProvisioningContext(ctx, cfg, provider, env, recorder)
	return &session{cfg: cfg, pctx: pctx, registry: registry, log: logger}, nil
}

// pushMetrics pushes the session's metrics if a Pushgateway is configured.
// Failures are logged, not returned.
func (s *session) pushMetrics(ctx context.Context) {
	if s.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := pushMetrics(ctx, s.cfg.Metrics.PushgatewayURL, s.cfg.Metrics.Job, s.pctx.RunID, s.registry); err != nil {
		log.Printf("Warning: %v", err)
	}
}

// confirmLaunch asks before anything is created. yes skips the prompt; a
// non-interactive session without yes is refused.
func confirmLaunch(ctx context.Context, question string, yes bool) error {
	if yes {
		return nil
	}
	if !isInteractive() {
		return fmt.Errorf("refusing to launch without --yes in a non-interactive session")
	}
	ok, err := confirm(ctx, question)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("aborted")
	}
	return nil
}

func promptConfirm(ctx context.Context, question string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Launch").
				Negative("Cancel").
				Value(&ok),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("prompt canceled: %w", err)
	}
	return ok, nil
}

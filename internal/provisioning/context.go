package provisioning

import (
	"context"

	"github.com/google/uuid"

	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/dispatch"
	"github.com/imamik/fleetboot/internal/metrics"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

// Context wraps all dependencies needed to launch and provision builds.
type Context struct {
	context.Context
	Config     *config.Config
	Provider   ComputeProvider
	Activities Activities
	Dispatcher *dispatch.Dispatcher
	Observer   Observer
	Timeouts   *config.Timeouts
	// Recorder may be nil when metrics are not collected.
	Recorder *metrics.Recorder
	// RunID labels every server created by this invocation.
	RunID string
}

// NewContext creates a provisioning context with the standard activities.
func NewContext(
	ctx context.Context,
	cfg *config.Config,
	provider ComputeProvider,
	env *activity.Env,
	recorder *metrics.Recorder,
) *Context {
	return &Context{
		Context:    ctx,
		Config:     cfg,
		Provider:   provider,
		Activities: NewActivities(env),
		Dispatcher: dispatch.New(dispatch.WithRecorder(recorder), dispatch.WithLogger(env.Logger)),
		Observer:   NewConsoleObserver(),
		Timeouts:   config.LoadTimeouts(),
		Recorder:   recorder,
		RunID:      uuid.NewString(),
	}
}

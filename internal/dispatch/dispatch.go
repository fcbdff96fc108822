package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/imamik/fleetboot/internal/metrics"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

// Completion is the outcome of one task.
type Completion struct {
	Task     activity.Task
	Result   activity.Result
	Err      error
	Duration time.Duration
}

// Failed reports whether the task returned an error or was cancelled.
func (c Completion) Failed() bool {
	return c.Err != nil
}

// Handle tracks one dispatched task.
type Handle struct {
	Task  activity.Task
	stage string

	done       chan struct{}
	completion Completion
}

// Done is closed once the task has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Completion returns the task outcome. It is only valid after Done is closed.
func (h *Handle) Completion() Completion {
	return h.completion
}

// Recorder receives per-task metrics. *metrics.Recorder implements it.
type Recorder interface {
	RecordTask(stage, result string, duration time.Duration)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRecorder records every finished task on r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l logr.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// Dispatcher runs activities against many instances concurrently.
type Dispatcher struct {
	recorder Recorder
	log      logr.Logger
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{log: logr.Discard()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch starts one worker per task and returns without waiting. The
// returned handles are in task order.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []activity.Task, act activity.Activity) []*Handle {
	handles := make([]*Handle, len(tasks))
	if len(tasks) == 0 {
		return handles
	}

	g := new(errgroup.Group)
	g.SetLimit(len(tasks))

	for i, task := range tasks {
		h := &Handle{Task: task, stage: act.Name(), done: make(chan struct{})}
		handles[i] = h
		g.Go(func() error {
			d.run(ctx, act, h)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		d.log.V(1).Info("all workers finished", "stage", act.Name(), "tasks", len(tasks))
	}()
	return handles
}

func (d *Dispatcher) run(ctx context.Context, act activity.Activity, h *Handle) {
	start := time.Now()
	var (
		res activity.Result
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s on %s panicked: %v", h.stage, h.Task.InstanceID, r)
		}
		if res.InstanceID == "" {
			res.InstanceID = h.Task.InstanceID
		}
		if res.Stage == "" {
			res.Stage = h.stage
		}
		h.completion = Completion{Task: h.Task, Result: res, Err: err, Duration: time.Since(start)}
		d.record(h.completion)
		close(h.done)
	}()

	d.log.V(1).Info("task started", "stage", h.stage, "instance", h.Task.InstanceID)
	res, err = act.Run(ctx, h.Task)
}

func (d *Dispatcher) record(c Completion) {
	result := metrics.ResultSuccess
	switch {
	case errors.Is(c.Err, context.Canceled), errors.Is(c.Err, context.DeadlineExceeded):
		result = metrics.ResultCancelled
	case c.Err != nil:
		result = metrics.ResultError
	}
	d.log.V(1).Info("task finished", "stage", c.Result.Stage, "instance", c.Task.InstanceID, "result", result, "duration", c.Duration)
	if d.recorder != nil {
		d.recorder.RecordTask(c.Result.Stage, result, c.Duration)
	}
}

// Await streams each completion as soon as its handle resolves and closes
// the channel once every handle is accounted for. When ctx is done, the
// handles still pending are reported with ctx.Err(); finished handles are
// always reported with their own completion.
func Await(ctx context.Context, handles []*Handle) <-chan Completion {
	out := make(chan Completion, len(handles))

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-h.done:
				out <- h.completion
			case <-ctx.Done():
				// A handle that finished meanwhile keeps its own outcome.
				select {
				case <-h.done:
					out <- h.completion
					return
				default:
				}
				out <- Completion{
					Task:   h.Task,
					Result: activity.Result{InstanceID: h.Task.InstanceID, Stage: h.stage},
					Err:    ctx.Err(),
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Collect drains ch into a slice in arrival order.
func Collect(ch <-chan Completion) []Completion {
	var out []Completion
	for c := range ch {
		out = append(out, c)
	}
	return out
}

// Run dispatches tasks and waits for all of them.
func (d *Dispatcher) Run(ctx context.Context, tasks []activity.Task, act activity.Activity) []Completion {
	return Collect(Await(ctx, d.Dispatch(ctx, tasks, act)))
}

// Failures returns the completions that failed.
func Failures(completions []Completion) []Completion {
	var out []Completion
	for _, c := range completions {
		if c.Failed() {
			out = append(out, c)
		}
	}
	return out
}

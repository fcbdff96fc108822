package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Task results.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// Recorder holds the fleetboot collectors.
type Recorder struct {
	tasksTotal        *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	launchedInstances *prometheus.CounterVec
	launchPollRounds  prometheus.Histogram
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fleetboot",
				Name:      "tasks_total",
				Help:      "Total number of provisioning tasks by stage and result",
			},
			[]string{"stage", "result"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fleetboot",
				Name:      "task_duration_seconds",
				Help:      "Duration of provisioning tasks in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"stage"},
		),
		launchedInstances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fleetboot",
				Name:      "launch_instances_total",
				Help:      "Total number of instances requested by launch result",
			},
			[]string{"result"},
		),
		launchPollRounds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "fleetboot",
				Name:      "launch_poll_rounds",
				Help:      "Number of status polling rounds until all instances were running",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
		),
	}
	reg.MustRegister(r.tasksTotal, r.taskDuration, r.launchedInstances, r.launchPollRounds)
	return r
}

// NewRegistry creates a fresh registry with a Recorder registered on it.
func NewRegistry() (*prometheus.Registry, *Recorder) {
	reg := prometheus.NewRegistry()
	return reg, NewRecorder(reg)
}

// RecordTask records one finished task. A nil Recorder records nothing.
func (r *Recorder) RecordTask(stage, result string, duration time.Duration) {
	if r == nil {
		return
	}
	r.tasksTotal.WithLabelValues(stage, result).Inc()
	r.taskDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLaunch records the outcome of one launch of count instances.
func (r *Recorder) RecordLaunch(result string, count, rounds int) {
	if r == nil {
		return
	}
	r.launchedInstances.WithLabelValues(result).Add(float64(count))
	if result == ResultSuccess {
		r.launchPollRounds.Observe(float64(rounds))
	}
}

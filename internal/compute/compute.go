package compute

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of an instance.
type Status string

// Instance states.
const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusOff      Status = "off"
	StatusDeleting Status = "deleting"
	StatusUnknown  Status = "unknown"
)

// Instance describes one server.
type Instance struct {
	ID       string
	Name     string
	PublicIP string
	Status   Status
	Labels   map[string]string
	Created  time.Time
}

// LaunchSpec is everything the provider needs to create a batch of servers.
type LaunchSpec struct {
	// Tag and RunID produce the temporary creation names.
	Tag   string
	RunID string
	Count int

	Size      string
	Image     string
	Key       string
	Zone      string
	Firewalls []string
	// UserData is the cloud-init payload, already read from disk.
	UserData string
	Labels   map[string]string
}

// Provider is the compute API the orchestration engine drives.
type Provider interface {
	// LaunchInstances creates spec.Count servers and returns their IDs in
	// creation order.
	LaunchInstances(ctx context.Context, spec LaunchSpec) ([]string, error)
	InstanceStatus(ctx context.Context, id string) (Status, error)
	// TagInstance renames the server and merges labels into its existing set.
	TagInstance(ctx context.Context, id, name string, labels map[string]string) error
	DescribeInstance(ctx context.Context, id string) (*Instance, error)
	// FindInstances returns the servers matching a label selector.
	FindInstances(ctx context.Context, selector string) ([]*Instance, error)
	RebootInstance(ctx context.Context, id string) error
}

// PartialLaunchError is returned by LaunchInstances when some servers of a
// batch were created before another one failed. The created servers are
// left running.
type PartialLaunchError struct {
	// Created and Names list the servers that exist, in creation order.
	Created []string
	Names   []string
	Err     error
}

func (e *PartialLaunchError) Error() string {
	return fmt.Sprintf("%d server(s) created before the launch failed: %v", len(e.Created), e.Err)
}

func (e *PartialLaunchError) Unwrap() error {
	return e.Err
}

package hcloud

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/fleetboot/internal/compute"
	"github.com/imamik/fleetboot/internal/util/async"
	"github.com/imamik/fleetboot/internal/util/naming"
	"github.com/imamik/fleetboot/internal/util/retry"
)

// LaunchInstances creates spec.Count servers concurrently. Server type,
// image, key, location and firewalls are resolved once up front, so a bad
// reference fails before anything is created. Servers are created under
// temporary names derived from the tag and run ID; the launcher renames them
// once they run. If only some creates fail, the IDs of the servers that
// exist are returned with a *compute.PartialLaunchError.
func (c *RealClient) LaunchInstances(ctx context.Context, spec compute.LaunchSpec) ([]string, error) {
	if spec.Count < 1 {
		return nil, fmt.Errorf("count must be at least 1, got %d", spec.Count)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ServerCreate)
	defer cancel()

	opts, err := c.buildServerCreateOpts(ctx, spec)
	if err != nil {
		return nil, err
	}

	ids := make([]string, spec.Count)
	tasks := make([]async.Task, spec.Count)
	for i := range spec.Count {
		name := naming.Creation(spec.Tag, spec.RunID, i)
		tasks[i] = async.Task{
			Name: name,
			Func: func(ctx context.Context) error {
				o := opts
				o.Name = name
				server, err := c.createServerWithRetry(ctx, o)
				if err != nil {
					return err
				}
				ids[i] = strconv.FormatInt(server.ID, 10)
				return nil
			},
		}
	}

	if err := async.RunParallel(ctx, tasks); err != nil {
		err = fmt.Errorf("failed to launch servers: %w", err)
		partial := &compute.PartialLaunchError{Err: err}
		for i, id := range ids {
			if id != "" {
				partial.Created = append(partial.Created, id)
				partial.Names = append(partial.Names, tasks[i].Name)
			}
		}
		if len(partial.Created) == 0 {
			return nil, err
		}
		log.Printf("[hcloud] %d of %d server(s) created before the launch failed", len(partial.Created), spec.Count)
		return partial.Created, partial
	}
	return ids, nil
}

// buildServerCreateOpts resolves all references of a launch spec.
func (c *RealClient) buildServerCreateOpts(ctx context.Context, spec compute.LaunchSpec) (hcloud.ServerCreateOpts, error) {
	serverType, _, err := c.client.ServerType.Get(ctx, spec.Size)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("server type %s: %w", spec.Size, ErrNotFound)
	}

	image, err := c.resolveImage(ctx, spec.Image, serverType.Architecture)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	var keys []*hcloud.SSHKey
	if spec.Key != "" {
		keys, err = c.resolveSSHKeys(ctx, []string{spec.Key})
		if err != nil {
			return hcloud.ServerCreateOpts{}, err
		}
	}

	location, err := c.resolveLocation(ctx, spec.Zone)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	firewalls, err := c.resolveFirewalls(ctx, spec.Firewalls)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	return hcloud.ServerCreateOpts{
		ServerType: serverType,
		Image:      image,
		SSHKeys:    keys,
		Location:   location,
		Firewalls:  firewalls,
		UserData:   spec.UserData,
		Labels:     spec.Labels,
	}, nil
}

// createServerWithRetry creates a server with exponential backoff retry logic.
func (c *RealClient) createServerWithRetry(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, error) {
	var result hcloud.ServerCreateResult

	err := retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := c.client.Server.Create(ctx, opts)
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		return nil, fmt.Errorf("failed to create server %s: %w", opts.Name, err)
	}

	log.Printf("[hcloud] Created server %s (%d)", result.Server.Name, result.Server.ID)
	return result.Server, nil
}

// InstanceStatus returns the status of a server.
func (c *RealClient) InstanceStatus(ctx context.Context, id string) (compute.Status, error) {
	server, err := c.getServer(ctx, id)
	if err != nil {
		return compute.StatusUnknown, err
	}
	return mapStatus(server.Status), nil
}

// TagInstance renames a server and merges labels into its current set.
// Updates rejected because an action still holds the server are retried.
func (c *RealClient) TagInstance(ctx context.Context, id, name string, labels map[string]string) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		server, err := c.getServer(ctx, id)
		if err != nil {
			return retry.Fatal(err)
		}

		merged := make(map[string]string, len(server.Labels)+len(labels))
		for k, v := range server.Labels {
			merged[k] = v
		}
		for k, v := range labels {
			merged[k] = v
		}

		_, _, err = c.client.Server.Update(ctx, server, hcloud.ServerUpdateOpts{Name: name, Labels: merged})
		if err != nil {
			if isResourceLocked(err) {
				return err
			}
			return retry.Fatal(fmt.Errorf("failed to tag server %s: %w", id, err))
		}
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}

// DescribeInstance returns a server by ID.
func (c *RealClient) DescribeInstance(ctx context.Context, id string) (*compute.Instance, error) {
	server, err := c.getServer(ctx, id)
	if err != nil {
		return nil, err
	}
	return toInstance(server), nil
}

// FindInstances returns all servers matching a label selector, e.g.
// "fleetboot.io/name=web-1".
func (c *RealClient) FindInstances(ctx context.Context, selector string) ([]*compute.Instance, error) {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	out := make([]*compute.Instance, 0, len(servers))
	for _, s := range servers {
		out = append(out, toInstance(s))
	}
	return out, nil
}

// RebootInstance reboots a server and waits for the reboot action.
func (c *RealClient) RebootInstance(ctx context.Context, id string) error {
	serverID, err := parseID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Reboot)
	defer cancel()

	action, _, err := c.client.Server.Reboot(ctx, &hcloud.Server{ID: serverID})
	if err != nil {
		return fmt.Errorf("failed to reboot server %s: %w", id, err)
	}
	if err := c.client.Action.WaitFor(ctx, action); err != nil {
		return fmt.Errorf("failed to wait for reboot of server %s: %w", id, err)
	}
	return nil
}

func (c *RealClient) getServer(ctx context.Context, id string) (*hcloud.Server, error) {
	serverID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	server, _, err := c.client.Server.GetByID(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	if server == nil {
		return nil, fmt.Errorf("server %s: %w", id, ErrNotFound)
	}
	return server, nil
}

func mapStatus(s hcloud.ServerStatus) compute.Status {
	switch s {
	case hcloud.ServerStatusInitializing, hcloud.ServerStatusStarting,
		hcloud.ServerStatusMigrating, hcloud.ServerStatusRebuilding:
		return compute.StatusPending
	case hcloud.ServerStatusRunning:
		return compute.StatusRunning
	case hcloud.ServerStatusStopping:
		return compute.StatusStopping
	case hcloud.ServerStatusOff:
		return compute.StatusOff
	case hcloud.ServerStatusDeleting:
		return compute.StatusDeleting
	default:
		return compute.StatusUnknown
	}
}

func toInstance(s *hcloud.Server) *compute.Instance {
	return &compute.Instance{
		ID:       strconv.FormatInt(s.ID, 10),
		Name:     s.Name,
		PublicIP: ServerIPv4(s),
		Status:   mapStatus(s.Status),
		Labels:   s.Labels,
		Created:  s.Created,
	}
}

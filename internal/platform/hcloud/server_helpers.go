package hcloud

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// resolveImage looks up an image by name or ID for the server type's
// architecture.
func (c *RealClient) resolveImage(ctx context.Context, name string, arch hcloud.Architecture) (*hcloud.Image, error) {
	image, _, err := c.client.Image.GetForArchitecture(ctx, name, arch)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return nil, fmt.Errorf("image %s (%s): %w", name, arch, ErrNotFound)
	}
	if image.Status != "" && image.Status != hcloud.ImageStatusAvailable {
		return nil, fmt.Errorf("image %s is %s", name, image.Status)
	}
	return image, nil
}

// resolveSSHKeys resolves SSH key names/IDs to SSH key objects.
func (c *RealClient) resolveSSHKeys(ctx context.Context, sshKeys []string) ([]*hcloud.SSHKey, error) {
	var sshKeyObjs []*hcloud.SSHKey
	for _, key := range sshKeys {
		keyObj, _, err := c.client.SSHKey.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get ssh key %s: %w", key, err)
		}
		if keyObj == nil {
			return nil, fmt.Errorf("ssh key %s: %w", key, ErrNotFound)
		}
		sshKeyObjs = append(sshKeyObjs, keyObj)
	}
	return sshKeyObjs, nil
}

// resolveLocation resolves a location name to a location object.
func (c *RealClient) resolveLocation(ctx context.Context, location string) (*hcloud.Location, error) {
	if location == "" {
		return nil, nil
	}

	locObj, _, err := c.client.Location.Get(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get location %s: %w", location, err)
	}
	if locObj == nil {
		return nil, fmt.Errorf("location %s: %w", location, ErrNotFound)
	}
	return locObj, nil
}

// resolveFirewalls resolves firewall names to server create options.
func (c *RealClient) resolveFirewalls(ctx context.Context, names []string) ([]*hcloud.ServerCreateFirewall, error) {
	var out []*hcloud.ServerCreateFirewall
	for _, name := range names {
		fw, _, err := c.client.Firewall.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get firewall %s: %w", name, err)
		}
		if fw == nil {
			return nil, fmt.Errorf("firewall %s: %w", name, ErrNotFound)
		}
		out = append(out, &hcloud.ServerCreateFirewall{Firewall: *fw})
	}
	return out, nil
}

// ServerIPv4 extracts the public IPv4 address from a server, or empty string if not set.
func ServerIPv4(s *hcloud.Server) string {
	if s != nil && s.PublicNet.IPv4.IP != nil {
		return s.PublicNet.IPv4.IP.String()
	}
	return ""
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid server id: %s", id)
	}
	return n, nil
}

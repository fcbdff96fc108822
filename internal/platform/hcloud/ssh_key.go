package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// CreateSSHKey registers a public key and returns its ID.
func (c *RealClient) CreateSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (string, error) {
	key, _, err := c.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: publicKey,
		Labels:    labels,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create ssh key: %w", err)
	}
	return fmt.Sprintf("%d", key.ID), nil
}

// SSHKeyExists reports whether a key with the given name is registered.
func (c *RealClient) SSHKeyExists(ctx context.Context, name string) (bool, error) {
	key, _, err := c.client.SSHKey.Get(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to get ssh key: %w", err)
	}
	return key != nil, nil
}

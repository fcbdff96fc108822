package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/util/keygen"
	"github.com/imamik/fleetboot/internal/util/labels"
)

const rsaKeyBits = 4096

var (
	// writeFile writes data to a file (for testing injection).
	writeFile = os.WriteFile

	// generateKey creates the key pair for key create.
	generateKey = func(name string, rsa bool) (*keygen.KeyPair, error) {
		if rsa {
			return keygen.GenerateRSAKeyPair(rsaKeyBits)
		}
		return keygen.GenerateEd25519KeyPair(name)
	}
)

// KeyOptions are the arguments of the key create command.
type KeyOptions struct {
	Name string
	RSA  bool
}

// CreateKey generates a key pair, saves the private key as
// <key_path>/<name>.pem and registers the public key with Hetzner Cloud.
// Existing local files and remote keys are never overwritten.
func CreateKey(ctx context.Context, g Globals, opts KeyOptions) error {
	if err := labels.ValidateValue(opts.Name); err != nil {
		return fmt.Errorf("invalid key name: %w", err)
	}
	cfg, err := loadConfig(g.ConfigPath)
	if err != nil {
		return err
	}
	token := os.Getenv("HCLOUD_TOKEN")
	if token == "" {
		return fmt.Errorf("HCLOUD_TOKEN is not set")
	}

	pemPath := cfg.KeyFile(opts.Name)
	if _, err := os.Stat(pemPath); err == nil {
		return fmt.Errorf("key file %s already exists", pemPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check key file: %w", err)
	}

	provider := newProvider(token, config.LoadTimeouts())
	exists, err := provider.SSHKeyExists(ctx, opts.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("ssh key %s already exists in Hetzner Cloud", opts.Name)
	}

	kp, err := generateKey(opts.Name, opts.RSA)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.KeyPath, 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := writeFile(pemPath, kp.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	pubPath := filepath.Join(cfg.KeyPath, opts.Name+".pub")
	if err := writeFile(pubPath, kp.PublicKey, 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	id, err := provider.CreateSSHKey(ctx, opts.Name, string(kp.PublicKey), labels.NewLabelBuilder(opts.Name).Build())
	if err != nil {
		// Keep local and remote state in step.
		_ = os.Remove(pemPath)
		_ = os.Remove(pubPath)
		return err
	}

	log.Printf("Registered ssh key %s (id %s)", opts.Name, id)
	fmt.Fprintf(stdout, "Private key: %s\nPublic key:  %s\n", pemPath, pubPath)
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFilename is looked up in the working directory and its parents.
	DefaultConfigFilename = "fleetboot.yaml"

	// EnvConfigPath overrides the configuration file location.
	EnvConfigPath = "FLEETBOOT_CONFIG"

	envS3AccessKey = "FLEETBOOT_S3_ACCESS_KEY"
	envS3SecretKey = "FLEETBOOT_S3_SECRET_KEY"
	envS3Endpoint  = "FLEETBOOT_S3_ENDPOINT"
)

// Load reads, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates configuration data.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".fleetboot")

	if c.KeyPath == "" {
		c.KeyPath = filepath.Join(base, "keys")
	}
	if c.PubKeyPath == "" {
		c.PubKeyPath = filepath.Join(base, "pubkeys")
	}
	if c.ScriptPath == "" {
		c.ScriptPath = filepath.Join(base, "scripts")
	}
	c.KeyPath = expandHome(c.KeyPath, home)
	c.PubKeyPath = expandHome(c.PubKeyPath, home)
	c.ScriptPath = expandHome(c.ScriptPath, home)

	if c.Storage.Region == "" {
		c.Storage.Region = "fsn1"
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "fleetboot"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envS3AccessKey); v != "" {
		c.Storage.AccessKey = v
	}
	if v := os.Getenv(envS3SecretKey); v != "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv(envS3Endpoint); v != "" {
		c.Storage.Endpoint = v
	}
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns ~/.fleetboot/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".fleetboot", "config.yaml")
	}
	return filepath.Join(home, ".fleetboot", "config.yaml")
}

// FindConfigFile resolves the configuration file to use.
// It checks, in order: the explicit path, $FLEETBOOT_CONFIG, fleetboot.yaml
// in the working directory and its parents, then DefaultConfigPath.
func FindConfigFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := cwd
	for {
		path := filepath.Join(dir, DefaultConfigFilename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no configuration found: pass --config, set %s, or create %s", EnvConfigPath, path)
}

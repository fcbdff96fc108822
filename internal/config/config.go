package config

import (
	"fmt"
	"path/filepath"

	"github.com/imamik/fleetboot/internal/bundle"
)

// Upgrade modes.
const (
	UpgradeModeUpgrade     = "upgrade"
	UpgradeModeDistUpgrade = "dist-upgrade"
)

// Config is the complete fleetboot configuration.
type Config struct {
	// KeyPath is the directory holding private keys as <key>.pem.
	KeyPath string `yaml:"key_path"`
	// PubKeyPath is the directory whose *.pub files are installed for new users.
	PubKeyPath string `yaml:"pub_key_path"`
	// ScriptPath is the directory holding scripts and user-data files.
	ScriptPath string `yaml:"script_path"`

	Images        map[string]Image          `yaml:"images,omitempty"`
	Bundles       map[string][]string       `yaml:"bundles,omitempty"`
	PythonBundles map[string][]string       `yaml:"python_bundles,omitempty"`
	Groups        map[string][]bundle.Item  `yaml:"groups,omitempty"`
	AptRepos      map[string]bundle.AptRepo `yaml:"apt_repos,omitempty"`
	PPAs          map[string]string         `yaml:"ppas,omitempty"`
	// Preseeds maps a package name to debconf-set-selections lines.
	Preseeds map[string][]string `yaml:"preseeds,omitempty"`

	Builds   map[string]Build   `yaml:"builds,omitempty"`
	Projects map[string]Project `yaml:"projects,omitempty"`

	Storage StorageConfig `yaml:"storage,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// Image is a nicknamed Hetzner Cloud image.
type Image struct {
	// Name is the Hetzner image name or ID, e.g. "ubuntu-24.04".
	Name string `yaml:"name"`
	// Login is the default login user for servers booted from the image.
	Login string `yaml:"login,omitempty"`
}

// Build describes what to launch and how to bootstrap it.
type Build struct {
	// Size is the Hetzner server type, e.g. "cx22".
	Size  string `yaml:"size"`
	Image string `yaml:"image"`
	// Login overrides the image's login user.
	Login string `yaml:"login,omitempty"`
	// Key names both the Hetzner SSH key and the local <key>.pem file.
	Key string `yaml:"key"`
	// SecurityGroups are Hetzner firewall names.
	SecurityGroups []string `yaml:"security_groups,omitempty"`
	// Zone is a Hetzner location, e.g. "fsn1".
	Zone string `yaml:"zone,omitempty"`
	// UserData names a cloud-init file under ScriptPath.
	UserData string `yaml:"user_data,omitempty"`
	// Suffix is appended to every instance name.
	Suffix string `yaml:"suffix,omitempty"`

	Upgrade string       `yaml:"upgrade,omitempty"`
	Group   string       `yaml:"group,omitempty"`
	Pip     string       `yaml:"pip,omitempty"`
	Script  *ScriptStage `yaml:"script,omitempty"`
	User    *UserStage   `yaml:"user,omitempty"`
}

// ScriptStage configures the script stage of a build.
type ScriptStage struct {
	// Name is the script file under ScriptPath.
	Name string `yaml:"name"`
	// User owns and runs the script; defaults to the login user.
	User     string `yaml:"user,omitempty"`
	CopyOnly bool   `yaml:"copy_only,omitempty"`
	// Template renders the script with text/template before upload.
	Template bool `yaml:"template,omitempty"`
}

// UserStage configures the user-create stage of a build.
type UserStage struct {
	Name     string   `yaml:"name"`
	FullName string   `yaml:"full_name,omitempty"`
	Groups   []string `yaml:"groups,omitempty"`
	Sudo     bool     `yaml:"sudo,omitempty"`
}

// Project is an ordered set of builds launched together.
type Project struct {
	Builds []ProjectBuild `yaml:"builds"`
}

// ProjectBuild is one build of a project and how many instances to launch.
type ProjectBuild struct {
	Build string `yaml:"build"`
	Count int    `yaml:"count"`
}

// StorageConfig configures S3-compatible object storage.
// Credentials normally come from FLEETBOOT_S3_ACCESS_KEY and FLEETBOOT_S3_SECRET_KEY.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	// ReportBucket receives a YAML report of every build run when set.
	ReportBucket string `yaml:"report_bucket,omitempty"`
}

// MetricsConfig configures pushing run metrics to a Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty"`
	Job            string `yaml:"job,omitempty"`
}

// Catalog returns the bundle catalog view of the configuration.
func (c *Config) Catalog() bundle.Catalog {
	return bundle.Catalog{
		Groups:   c.Groups,
		Bundles:  c.Bundles,
		AptRepos: c.AptRepos,
		PPAs:     c.PPAs,
	}
}

// Build returns the named build.
func (c *Config) Build(name string) (Build, error) {
	b, ok := c.Builds[name]
	if !ok {
		return Build{}, fmt.Errorf("no build named %q", name)
	}
	return b, nil
}

// Image returns the image a build refers to.
func (c *Config) Image(nickname string) (Image, error) {
	img, ok := c.Images[nickname]
	if !ok {
		return Image{}, fmt.Errorf("no image named %q", nickname)
	}
	return img, nil
}

// LoginFor returns the login user of a build, falling back to its image's default.
func (c *Config) LoginFor(b Build) string {
	if b.Login != "" {
		return b.Login
	}
	if img, ok := c.Images[b.Image]; ok {
		return img.Login
	}
	return ""
}

// KeyFile returns the path of the private key file for key.
func (c *Config) KeyFile(key string) string {
	return filepath.Join(c.KeyPath, key+".pem")
}

// ScriptFile returns the path of the named script.
func (c *Config) ScriptFile(name string) string {
	return filepath.Join(c.ScriptPath, name)
}

// PreseedsFor returns the debconf lines for the given packages, in package order.
func (c *Config) PreseedsFor(packages []string) []string {
	var lines []string
	for _, p := range packages {
		lines = append(lines, c.Preseeds[p]...)
	}
	return lines
}

// BuildNames returns the configured build names sorted.
func (c *Config) BuildNames() []string {
	return sortedKeys(c.Builds)
}

package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks the configuration for structural errors. All problems are
// reported together. Group cycles are detected when a group is resolved,
// not here.
func (c *Config) Validate() error {
	var errs []error

	for _, name := range sortedKeys(c.Images) {
		if c.Images[name].Name == "" {
			errs = append(errs, fmt.Errorf("images.%s: name is required", name))
		}
	}

	for _, name := range sortedKeys(c.Groups) {
		for i, item := range c.Groups[name] {
			if _, err := item.Kind(); err != nil {
				errs = append(errs, fmt.Errorf("groups.%s[%d]: %w", name, i, err))
			}
		}
	}

	for _, name := range sortedKeys(c.AptRepos) {
		if err := c.AptRepos[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("apt_repos.%s: %w", name, err))
		}
	}

	for _, name := range c.BuildNames() {
		for _, err := range c.validateBuild(c.Builds[name]) {
			errs = append(errs, fmt.Errorf("builds.%s: %w", name, err))
		}
	}

	for _, name := range sortedKeys(c.Projects) {
		p := c.Projects[name]
		if len(p.Builds) == 0 {
			errs = append(errs, fmt.Errorf("projects.%s: at least one build is required", name))
		}
		for i, pb := range p.Builds {
			if _, ok := c.Builds[pb.Build]; !ok {
				errs = append(errs, fmt.Errorf("projects.%s.builds[%d]: unknown build %q", name, i, pb.Build))
			}
			if pb.Count < 1 {
				errs = append(errs, fmt.Errorf("projects.%s.builds[%d]: count must be at least 1", name, i))
			}
		}
	}

	if c.Storage.ReportBucket != "" && c.Storage.Endpoint == "" {
		errs = append(errs, fmt.Errorf("storage.report_bucket: endpoint is required"))
	}

	return errors.Join(errs...)
}

func (c *Config) validateBuild(b Build) []error {
	var errs []error

	if b.Size == "" {
		errs = append(errs, fmt.Errorf("size is required"))
	}
	if b.Key == "" {
		errs = append(errs, fmt.Errorf("key is required"))
	}
	if b.Image == "" {
		errs = append(errs, fmt.Errorf("image is required"))
	} else if _, ok := c.Images[b.Image]; !ok {
		errs = append(errs, fmt.Errorf("unknown image %q", b.Image))
	} else if c.LoginFor(b) == "" {
		errs = append(errs, fmt.Errorf("login is required (set it on the build or the image)"))
	}

	if b.Upgrade != "" && b.Upgrade != UpgradeModeUpgrade && b.Upgrade != UpgradeModeDistUpgrade {
		errs = append(errs, fmt.Errorf("upgrade must be %q or %q, got %q", UpgradeModeUpgrade, UpgradeModeDistUpgrade, b.Upgrade))
	}
	if b.Group != "" {
		if _, ok := c.Groups[b.Group]; !ok {
			errs = append(errs, fmt.Errorf("unknown group %q", b.Group))
		}
	}
	if b.Pip != "" {
		if _, ok := c.PythonBundles[b.Pip]; !ok {
			errs = append(errs, fmt.Errorf("unknown python bundle %q", b.Pip))
		}
	}
	if b.Script != nil && b.Script.Name == "" {
		errs = append(errs, fmt.Errorf("script.name is required"))
	}
	if b.User != nil && b.User.Name == "" {
		errs = append(errs, fmt.Errorf("user.name is required"))
	}

	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

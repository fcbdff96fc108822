// Package config defines the fleetboot configuration store: images, package
// bundles and groups, builds, projects and service settings.
//
// The configuration is loaded once from YAML at startup and passed by
// pointer into the launcher, resolver and dispatcher; nothing in the
// provisioning path writes it. Secrets come from the environment, and
// timing knobs come from [LoadTimeouts].
package config

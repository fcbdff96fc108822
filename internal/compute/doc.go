// Package compute defines the provider-neutral view of cloud servers used by
// the launcher and the provisioning activities.
//
// The Hetzner Cloud implementation lives in internal/platform/hcloud.
package compute

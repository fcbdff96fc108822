// Package labels builds and validates the Hetzner Cloud labels fleetboot
// uses as instance tags.
//
// Every label key carries the fleetboot.io prefix. Label values double as
// the operator-visible tags (name, project, build, login), so [ValidateValue]
// rejects anything the label scheme reserves before a provider call is made.
package labels

// Package naming derives server names for launched instances.
//
// Servers are created under a temporary name {tag}-{run}-{n} that is unique
// per launch, then renamed to their final name once every server of the
// launch is running. Final names are the plain tag for single launches and
// {tag}-{index} otherwise, with an optional build suffix.
package naming

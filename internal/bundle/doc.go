// Package bundle expands named package groups into the ordered list of
// install units a server receives.
//
// A group is an ordered list of items. Each item references a bundle (a
// named package list), another group, an apt repository, a PPA, or lists
// packages inline. Groups may nest but must not form a cycle; expansion
// keeps the set of groups on the current path and fails with [CycleError]
// on re-entry.
package bundle

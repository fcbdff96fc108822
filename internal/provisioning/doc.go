// Package provisioning is the orchestration engine: it validates a build,
// launches its instances, then runs the configured setup stages across all
// of them.
//
// # Flow
//
//   - PlanStages resolves everything a build needs before any API call,
//     including the package group. A cyclic group fails here.
//   - Launch requests the instances, polls until every one is running and
//     gives them their final names and labels.
//   - RunStages dispatches one task per instance per stage. A stage starts
//     only after every task of the previous stage has reported.
//
// Provision chains the three for a single build. LaunchProject does the
// same for every build of a project concurrently, numbering instances
// across builds.
//
// Context carries configuration, the compute provider, the activities, the
// dispatcher and the observer.
package provisioning

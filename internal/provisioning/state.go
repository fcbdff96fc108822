package provisioning

import (
	"github.com/imamik/fleetboot/internal/dispatch"
)

// StageReport holds the completions of one stage, in arrival order.
type StageReport struct {
	Stage       string
	Completions []dispatch.Completion
}

// BuildReport is the outcome of provisioning one build.
type BuildReport struct {
	Launch *LaunchResult
	Stages []StageReport
}

// Failures returns every failed completion across all stages.
func (r *BuildReport) Failures() []dispatch.Completion {
	if r == nil {
		return nil
	}
	var out []dispatch.Completion
	for _, s := range r.Stages {
		out = append(out, dispatch.Failures(s.Completions)...)
	}
	return out
}

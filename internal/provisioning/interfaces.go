package provisioning

import (
	"github.com/imamik/fleetboot/internal/compute"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

// ComputeProvider is the compute API the engine drives.
// Implemented by internal/platform/hcloud.RealClient.
type ComputeProvider = compute.Provider

// Activities holds one activity per stage.
type Activities struct {
	Upgrade activity.Activity
	Group   activity.Activity
	Pip     activity.Activity
	Script  activity.Activity
	User    activity.Activity
}

// NewActivities creates the standard activities sharing env.
func NewActivities(env *activity.Env) Activities {
	return Activities{
		Upgrade: activity.NewUpgrade(env),
		Group:   activity.NewGroupInstall(env),
		Pip:     activity.NewPipInstall(env),
		Script:  activity.NewScriptRun(env),
		User:    activity.NewCreateUser(env),
	}
}

// ForStage returns the activity of the named stage, or nil.
func (a Activities) ForStage(stage string) activity.Activity {
	switch stage {
	case activity.StageUpgrade:
		return a.Upgrade
	case activity.StageGroup:
		return a.Group
	case activity.StagePip:
		return a.Pip
	case activity.StageScript:
		return a.Script
	case activity.StageUser:
		return a.User
	}
	return nil
}

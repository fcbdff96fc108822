package provisioning

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLaunchTimeout matches a *LaunchTimeoutError.
var ErrLaunchTimeout = errors.New("instances did not reach running state")

// ErrTasksFailed is returned when at least one stage task failed.
var ErrTasksFailed = errors.New("provisioning tasks failed")

// LaunchTimeoutError is returned when polling ran out of rounds before
// every instance was running. The instances are left as they are.
type LaunchTimeoutError struct {
	InstanceIDs []string
	Pending     []string
	Rounds      int
	Interval    time.Duration
}

func (e *LaunchTimeoutError) Error() string {
	return fmt.Sprintf("%v after %d rounds of %v: pending %s (launched %s)",
		ErrLaunchTimeout, e.Rounds, e.Interval, strings.Join(e.Pending, ", "), strings.Join(e.InstanceIDs, ", "))
}

// Is reports whether target is ErrLaunchTimeout.
func (e *LaunchTimeoutError) Is(target error) bool {
	return target == ErrLaunchTimeout
}

// ErrNoInstances is returned when a name matches no instance.
var ErrNoInstances = errors.New("no instances found")

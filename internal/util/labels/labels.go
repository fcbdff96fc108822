package labels

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// Label keys applied to launched servers.
const (
	// KeyName is the operator-chosen instance name.
	KeyName = "fleetboot.io/name"

	KeyProject = "fleetboot.io/project"
	KeyBuild   = "fleetboot.io/build"

	// KeyLogin records the login user so later remote commands can connect
	// without consulting the build.
	KeyLogin = "fleetboot.io/login"

	// KeySSHKey records the key the server was launched with, so later
	// remote commands can log in with <key_path>/<key>.pem.
	KeySSHKey = "fleetboot.io/key"

	// KeyRun identifies the launch invocation that created the server.
	KeyRun = "fleetboot.io/run"

	KeyManagedBy = "fleetboot.io/managed-by"
)

// ManagedByFleetboot is the value of KeyManagedBy on every server we create.
const ManagedByFleetboot = "fleetboot"

// MaxValueLength is the longest label value Hetzner Cloud accepts.
const MaxValueLength = 63

var valuePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// ValidateValue reports whether v can be stored as a label value.
// Brackets, whitespace and other reserved characters are rejected.
func ValidateValue(v string) error {
	if v == "" {
		return fmt.Errorf("value must not be empty")
	}
	if len(v) > MaxValueLength {
		return fmt.Errorf("value %q is longer than %d characters", v, MaxValueLength)
	}
	if !valuePattern.MatchString(v) {
		return fmt.Errorf("value %q may only contain letters, digits, '.', '_' and '-' and must start and end with a letter or digit", v)
	}
	return nil
}

// LabelBuilder provides a fluent interface for building server labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the instance name and manager set.
func NewLabelBuilder(name string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyName:      name,
			KeyManagedBy: ManagedByFleetboot,
		},
	}
}

// WithProject adds the project label when project is non-empty.
func (lb *LabelBuilder) WithProject(project string) *LabelBuilder {
	return lb.setIfNotEmpty(KeyProject, project)
}

// WithBuild adds the build label when build is non-empty.
func (lb *LabelBuilder) WithBuild(build string) *LabelBuilder {
	return lb.setIfNotEmpty(KeyBuild, build)
}

// WithLogin adds the login user label when login is non-empty.
func (lb *LabelBuilder) WithLogin(login string) *LabelBuilder {
	return lb.setIfNotEmpty(KeyLogin, login)
}

// WithRun adds the launch run identifier.
func (lb *LabelBuilder) WithRun(run string) *LabelBuilder {
	return lb.setIfNotEmpty(KeyRun, run)
}

// WithSSHKey adds the SSH key label when key is non-empty.
func (lb *LabelBuilder) WithSSHKey(key string) *LabelBuilder {
	return lb.setIfNotEmpty(KeySSHKey, key)
}

func (lb *LabelBuilder) setIfNotEmpty(key, value string) *LabelBuilder {
	if value != "" {
		lb.labels[key] = value
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// LabelError reports a label value Hetzner Cloud would reject.
type LabelError struct {
	Key   string
	Value string
	Err   error
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("label %s: %v", e.Key, e.Err)
}

func (e *LabelError) Unwrap() error {
	return e.Err
}

// Validate checks every value in the built label set. It joins one
// *LabelError per invalid value, in key order.
func (lb *LabelBuilder) Validate() error {
	keys := make([]string, 0, len(lb.labels))
	for k := range lb.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		if err := ValidateValue(lb.labels[k]); err != nil {
			errs = append(errs, &LabelError{Key: k, Value: lb.labels[k], Err: err})
		}
	}
	return errors.Join(errs...)
}

// Invalid returns the *LabelError entries of an error returned by Validate.
func Invalid(err error) []*LabelError {
	var out []*LabelError
	var le *LabelError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if errors.As(e, &le) {
				out = append(out, le)
			}
		}
		return out
	}
	if errors.As(err, &le) {
		out = append(out, le)
	}
	return out
}

// SelectorForName returns a label selector matching servers with the given name.
func SelectorForName(name string) string {
	return KeyName + "=" + name
}

// SelectorForRun returns a label selector matching servers of one launch.
func SelectorForRun(run string) string {
	return KeyRun + "=" + run
}

package provisioning

import (
	"fmt"
	"strings"

	"github.com/imamik/fleetboot/internal/util/labels"
	"github.com/imamik/fleetboot/internal/util/naming"
)

// Validation severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a configuration validation error or warning.
type ValidationError struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// Unwrap returns the underlying cause.
func (ve ValidationError) Unwrap() error {
	return ve.Err
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == SeverityError
}

// ValidationErrors is a non-empty list of validation errors.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

// Unwrap exposes every entry to errors.Is and errors.As.
func (ve ValidationErrors) Unwrap() []error {
	errs := make([]error, len(ve))
	for i, e := range ve {
		errs[i] = e
	}
	return errs
}

func errorf(field, format string, args ...any) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

// report logs warnings and returns the errors as ValidationErrors, or nil.
func report(observer Observer, all []ValidationError) error {
	var errs ValidationErrors
	for _, ve := range all {
		if ve.IsError() {
			errs = append(errs, ve)
			observer.Event(Event{Type: EventValidationError, Phase: "validation", Resource: ve.Field, Message: ve.Message})
			continue
		}
		observer.Event(Event{Type: EventValidationWarning, Phase: "validation", Resource: ve.Field, Message: ve.Message})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// labelFields maps label keys to the request fields they come from.
var labelFields = map[string]string{
	labels.KeyName:    "tag",
	labels.KeyProject: "project",
	labels.KeyBuild:   "build",
	labels.KeySSHKey:  "key",
}

// validateLaunch checks a launch request before any provider call: the
// count, the tag, and every name and label the launch will produce.
func validateLaunch(req LaunchRequest) []ValidationError {
	var errs []ValidationError

	if req.Count < 1 {
		errs = append(errs, errorf("count", "count must be at least 1, got %d", req.Count))
	}
	if req.Offset < 0 {
		errs = append(errs, errorf("offset", "offset must not be negative"))
	}

	if err := labels.ValidateValue(req.Tag); err != nil {
		errs = append(errs, ValidationError{Field: "tag", Message: fmt.Sprintf("invalid tag name: %v", err), Severity: SeverityError, Err: err})
		return errs
	}

	// The longest name is the one with the highest position.
	last := naming.Instance(req.Tag, req.Build.Suffix, req.Offset+max(req.Count, 1)-1, req.Numbered())
	for _, le := range labels.Invalid(launchLabels(req, last).Validate()) {
		field, ok := labelFields[le.Key]
		if !ok {
			field = le.Key
		}
		msg := le.Err.Error()
		if le.Key == labels.KeyName {
			msg = fmt.Sprintf("instance name %s is invalid: %v", last, le.Err)
		}
		errs = append(errs, ValidationError{Field: field, Message: msg, Severity: SeverityError, Err: le})
	}
	return errs
}

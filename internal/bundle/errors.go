package bundle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycleDetected matches any CycleError.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrUnknownReference matches any ReferenceError.
	ErrUnknownReference = errors.New("unknown reference")
)

// CycleError is returned when a group references itself, directly or
// through other groups.
type CycleError struct {
	// Path lists the groups from the outermost one to the repeated one.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in group %q: %s", e.Path[len(e.Path)-1], strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// ReferenceError is returned for a reference to an undefined group, bundle,
// apt repository or PPA.
type ReferenceError struct {
	Kind ItemKind
	Name string
	// Group is the group holding the reference, empty for the root group.
	Group string
}

func (e *ReferenceError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("no %s named %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("group %q references unknown %s %q", e.Group, e.Kind, e.Name)
}

func (e *ReferenceError) Is(target error) bool {
	return target == ErrUnknownReference
}

// ItemError reports a malformed group item.
type ItemError struct {
	Group string
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("group %q item %d: %v", e.Group, e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

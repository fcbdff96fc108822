package activity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoAddress is returned when an instance has no public address to connect to.
var ErrNoAddress = errors.New("instance has no public IPv4 address")

// ErrUnexpectedArgs is returned when a task carries arguments for another activity.
var ErrUnexpectedArgs = errors.New("unexpected task arguments")

// ConnectionError reports that a session to an instance could not be opened.
type ConnectionError struct {
	InstanceID string
	Host       string
	User       string
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("cannot connect to instance %s: %v", e.InstanceID, e.Err)
	}
	return fmt.Sprintf("cannot connect to instance %s as %s@%s: %v", e.InstanceID, e.User, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RemoteCommandError reports a command that failed on the instance. Lines
// holds the error lines that caused the failure.
type RemoteCommandError struct {
	Command    string
	Lines      []string
	ExitStatus int
}

func (e *RemoteCommandError) Error() string {
	msg := fmt.Sprintf("remote command %q failed", e.Command)
	if e.ExitStatus != 0 {
		msg += fmt.Sprintf(" with exit status %d", e.ExitStatus)
	}
	if len(e.Lines) > 0 {
		msg += ": " + strings.Join(e.Lines, "; ")
	}
	return msg
}

func argsError(stage string, got any) error {
	return fmt.Errorf("%w for %s: %T", ErrUnexpectedArgs, stage, got)
}

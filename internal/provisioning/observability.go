package provisioning

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

// Logger is the minimal printf-style logging interface.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer defines the interface for structured observability during provisioning.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // "launch" or a stage name
	Message   string            // Human-readable message
	Resource  string            // Instance ID or name if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
	// Lines is multi-line output attached to task events.
	Lines []string
}

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventPhaseStarted indicates a launch or stage has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a launch or stage completed.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a launch or stage failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventInstanceStatus reports an instance that is not running yet.
	EventInstanceStatus EventType = "instance.status"
	// EventInstanceTagged indicates an instance received its final name and labels.
	EventInstanceTagged EventType = "instance.tagged"
	// EventInstanceReady carries the connection hint for a launched instance.
	EventInstanceReady EventType = "instance.ready"
	// EventInstanceOrphaned reports an instance created by a launch that failed.
	EventInstanceOrphaned EventType = "instance.orphaned"

	// EventTaskSucceeded carries the output of a finished task.
	EventTaskSucceeded EventType = "task.succeeded"
	// EventTaskFailed carries the output and error of a failed task.
	EventTaskFailed EventType = "task.failed"

	// EventValidationWarning indicates a validation warning.
	EventValidationWarning EventType = "validation.warning"
	// EventValidationError indicates a validation error.
	EventValidationError EventType = "validation.error"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	successStyle = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// ConsoleObserver implements Observer by writing one line per event.
type ConsoleObserver struct {
	out           *log.Logger
	color         bool
	contextFields map[string]string
}

// NewConsoleObserver creates an observer writing to stderr, styled when
// stderr is a terminal.
func NewConsoleObserver() *ConsoleObserver {
	fd := os.Stderr.Fd()
	return NewConsoleObserverTo(os.Stderr, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

// NewConsoleObserverTo creates an observer writing to w.
func NewConsoleObserverTo(w io.Writer, color bool) *ConsoleObserver {
	return &ConsoleObserver{
		out:           log.New(w, "", log.LstdFlags),
		color:         color,
		contextFields: make(map[string]string),
	}
}

// Printf implements Logger.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	o.out.Printf(format, v...)
}

// Event implements Observer interface.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Merge context fields
	if event.Fields == nil {
		event.Fields = make(map[string]string)
	}
	for k, v := range o.contextFields {
		if _, exists := event.Fields[k]; !exists {
			event.Fields[k] = v
		}
	}

	o.out.Print(o.formatEvent(event))
}

// Progress implements Observer interface.
func (o *ConsoleObserver) Progress(phase string, current, total int) {
	if total == 0 {
		o.out.Printf("[%s] Progress: %d/%d", phase, current, total)
		return
	}
	percentage := (current * 100) / total
	o.out.Printf("[%s] Progress: %d/%d (%d%%)", phase, current, total, percentage)
}

// WithFields implements Observer interface.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	newFields := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &ConsoleObserver{
		out:           o.out,
		color:         o.color,
		contextFields: newFields,
	}
}

func (o *ConsoleObserver) style(s lipgloss.Style, text string) string {
	if !o.color {
		return text
	}
	return s.Render(text)
}

// formatEvent formats an event for console output. Task events print a
// header followed by their output lines.
func (o *ConsoleObserver) formatEvent(event Event) string {
	var parts []string

	typ := string(event.Type)
	switch event.Type {
	case EventPhaseFailed, EventTaskFailed, EventValidationError:
		typ = o.style(failedStyle, typ)
	case EventPhaseCompleted, EventTaskSucceeded, EventInstanceReady:
		typ = o.style(successStyle, typ)
	case EventValidationWarning, EventInstanceStatus, EventInstanceOrphaned:
		typ = o.style(warningStyle, typ)
	case EventPhaseStarted:
		typ = o.style(headerStyle, typ)
	}
	parts = append(parts, typ)

	if event.Phase != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Phase))
	}
	if event.Resource != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", event.Resource))
	}
	parts = append(parts, event.Message)

	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for k := range event.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, event.Fields[k]))
		}
		parts = append(parts, o.style(dimStyle, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", "))))
	}

	line := strings.Join(parts, " ")
	for _, l := range event.Lines {
		line += "\n    " + l
	}
	return line
}

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogInstanceStatus logs an instance that is not running yet.
func LogInstanceStatus(observer Observer, id, status string, round, rounds int) {
	observer.Event(Event{
		Type:     EventInstanceStatus,
		Phase:    PhaseLaunch,
		Resource: id,
		Message:  status,
		Fields: map[string]string{
			"round": fmt.Sprintf("%d/%d", round, rounds),
		},
	})
}

// LogTaskResult logs the output of one finished task.
func LogTaskResult(observer Observer, res activity.Result, err error) {
	event := Event{
		Type:     EventTaskSucceeded,
		Phase:    res.Stage,
		Resource: res.InstanceID,
		Message:  "ok",
		Lines:    res.Lines,
	}
	if res.Instance != "" {
		event.Resource = fmt.Sprintf("%s (%s)", res.Instance, res.InstanceID)
	}
	if err != nil {
		event.Type = EventTaskFailed
		event.Message = fmt.Sprintf("failed: %v", err)
	}
	observer.Event(event)
}

package activity

import (
	"strings"

	"github.com/imamik/fleetboot/internal/platform/ssh"
)

// Severity is how an output line is treated.
type Severity int

const (
	// Ignore drops the line.
	Ignore Severity = iota
	// Notable reports the line to the operator.
	Notable
	// Fatal reports the line and fails the command.
	Fatal
)

// Stream identifies which output stream a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// OutputClassifier decides what to do with each line of command output.
type OutputClassifier interface {
	Classify(stream Stream, line string) Severity
}

// ClassifierFunc adapts a function to OutputClassifier.
type ClassifierFunc func(stream Stream, line string) Severity

// Classify implements OutputClassifier.
func (f ClassifierFunc) Classify(stream Stream, line string) Severity {
	return f(stream, line)
}

// AptClassifier flags apt errors on stderr and reports package selection
// notes on stdout.
var AptClassifier OutputClassifier = ClassifierFunc(func(stream Stream, line string) Severity {
	if stream == Stderr {
		if strings.HasPrefix(line, "E: ") {
			return Fatal
		}
		return Ignore
	}
	if strings.Contains(line, "Note, selecting") || strings.Contains(line, "is already the newest version") {
		return Notable
	}
	return Ignore
})

// UpgradePlanClassifier keeps the package lists of a simulated upgrade.
var UpgradePlanClassifier OutputClassifier = ClassifierFunc(func(stream Stream, line string) Severity {
	if stream != Stdout {
		return Ignore
	}
	switch strings.TrimRight(line, " ") {
	case "The following packages have been kept back:", "The following packages will be upgraded:":
		return Notable
	}
	if strings.HasPrefix(line, "  ") {
		return Notable
	}
	return Ignore
})

// PipClassifier keeps pip's summary lines.
var PipClassifier OutputClassifier = ClassifierFunc(func(stream Stream, line string) Severity {
	if stream != Stdout {
		return Ignore
	}
	for _, prefix := range []string{"Installed", "Finished", "Successfully"} {
		if strings.HasPrefix(line, prefix) {
			return Notable
		}
	}
	return Ignore
})

// classified is the outcome of running output through a classifier.
type classified struct {
	notable []string
	fatal   []string
}

func classify(c OutputClassifier, out *ssh.ExecResult) classified {
	var res classified
	visit := func(stream Stream, lines []string) {
		for _, line := range lines {
			switch c.Classify(stream, line) {
			case Notable:
				res.notable = append(res.notable, line)
			case Fatal:
				res.fatal = append(res.fatal, line)
			}
		}
	}
	visit(Stdout, out.Stdout)
	visit(Stderr, out.Stderr)
	return res
}

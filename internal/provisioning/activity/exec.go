package activity

import (
	"context"
	"fmt"

	"github.com/imamik/fleetboot/internal/platform/ssh"
)

const unableToContinue = "Unable to continue!"

// run executes cmd on sess, feeding input on stdin when non-nil. Notable
// lines are appended to res. Fatal lines or a non-zero exit status yield a
// RemoteCommandError.
func run(ctx context.Context, sess Session, res *Result, cmd string, input []byte, c OutputClassifier) (*ssh.ExecResult, error) {
	var (
		out *ssh.ExecResult
		err error
	)
	if input != nil {
		out, err = sess.ExecInput(ctx, cmd, input)
	} else {
		out, err = sess.Exec(ctx, cmd)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to run %q: %w", cmd, err)
	}

	lines := classify(c, out)
	res.add(lines.notable...)

	switch {
	case len(lines.fatal) > 0:
		res.add(lines.fatal...)
		res.add(unableToContinue)
		return out, &RemoteCommandError{Command: cmd, Lines: lines.fatal, ExitStatus: out.ExitStatus}
	case out.ExitStatus != 0:
		res.add(unableToContinue)
		return out, &RemoteCommandError{Command: cmd, Lines: tail(out.Stderr, 5), ExitStatus: out.ExitStatus}
	}
	return out, nil
}

// quiet reports nothing and fails on exit status alone.
var quiet OutputClassifier = ClassifierFunc(func(Stream, string) Severity { return Ignore })

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

package activity

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"text/template"
)

// ScriptArgs is a script to copy to the instance and optionally run.
type ScriptArgs struct {
	Name     string
	Contents []byte
	// User owns and runs the script. Empty means the login user.
	User     string
	CopyOnly bool
	// Template renders Contents with ScriptData before upload.
	Template bool
}

// ScriptData is the data available to templated scripts.
type ScriptData struct {
	Name    string
	ID      string
	Build   string
	Project string
}

// ScriptRun uploads a script into the user's home directory and runs it
// with the local agent forwarded.
type ScriptRun struct {
	env *Env
}

// NewScriptRun creates the script activity.
func NewScriptRun(env *Env) *ScriptRun {
	return &ScriptRun{env: env}
}

// Name implements Activity.
func (s *ScriptRun) Name() string { return StageScript }

// Run implements Activity.
func (s *ScriptRun) Run(ctx context.Context, task Task) (Result, error) {
	res := newResult(task, s.Name())
	args, ok := task.Args.(ScriptArgs)
	if !ok {
		return res, argsError(s.Name(), task.Args)
	}
	if args.Name == "" {
		return res, fmt.Errorf("script name is required")
	}

	res.add(fmt.Sprintf("Running script %s on %s", args.Name, task.InstanceID))

	sess, user, err := s.env.connect(ctx, task, &res, args.User, !args.CopyOnly)
	if err != nil {
		return res, err
	}
	defer func() { _ = sess.Close() }()

	contents := args.Contents
	if args.Template {
		contents, err = renderScript(args, ScriptData{
			Name:    res.Instance,
			ID:      task.InstanceID,
			Build:   task.BuildName,
			Project: task.Project,
		})
		if err != nil {
			return res, err
		}
	}

	target := path.Join(homeDir(user), path.Base(args.Name))
	if err := sess.Upload(ctx, target, contents, 0744, false); err != nil {
		return res, fmt.Errorf("failed to copy script %s: %w", args.Name, err)
	}
	res.add("Copied " + target)

	if args.CopyOnly {
		return res, nil
	}

	out, err := sess.RunAndWait(ctx, target, s.env.ScriptPoll)
	if err != nil {
		return res, fmt.Errorf("failed to run script %s: %w", args.Name, err)
	}
	res.add(fmt.Sprintf("Script status: %d", out.ExitStatus))
	if out.ExitStatus != 0 {
		return res, &RemoteCommandError{Command: target, Lines: tail(out.Stderr, 5), ExitStatus: out.ExitStatus}
	}
	return res, nil
}

func renderScript(args ScriptArgs, data ScriptData) ([]byte, error) {
	tmpl, err := template.New(args.Name).Option("missingkey=error").Parse(string(args.Contents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse script template %s: %w", args.Name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render script template %s: %w", args.Name, err)
	}
	return buf.Bytes(), nil
}

// homeDir returns the conventional home directory of user.
func homeDir(user string) string {
	switch user {
	case "root":
		return "/root"
	default:
		return path.Join("/home", user)
	}
}

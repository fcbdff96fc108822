package activity

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/imamik/fleetboot/internal/platform/ssh"
)

// CreateUserArgs describes the account to create.
type CreateUserArgs struct {
	Name     string
	FullName string
	// PublicKeys are authorized_keys lines, one key per entry.
	PublicKeys []string
	Groups     []string
	Sudo       bool
}

// CreateUser adds a login account with no password and installs public keys.
type CreateUser struct {
	env *Env
}

// NewCreateUser creates the user activity.
func NewCreateUser(env *Env) *CreateUser {
	return &CreateUser{env: env}
}

// Name implements Activity.
func (c *CreateUser) Name() string { return StageUser }

// Run implements Activity.
func (c *CreateUser) Run(ctx context.Context, task Task) (Result, error) {
	res := newResult(task, c.Name())
	args, ok := task.Args.(CreateUserArgs)
	if !ok {
		return res, argsError(c.Name(), task.Args)
	}
	if args.Name == "" {
		return res, fmt.Errorf("user name is required")
	}

	res.add(fmt.Sprintf("Creating user %s on %s", args.Name, task.InstanceID))

	sess, _, err := c.env.connect(ctx, task, &res, "", false)
	if err != nil {
		return res, err
	}
	defer func() { _ = sess.Close() }()

	user := ssh.Quote(args.Name)
	cmd := fmt.Sprintf("sudo adduser --disabled-password --gecos %s %s", ssh.Quote(args.FullName), user)
	if _, err := run(ctx, sess, &res, cmd, nil, quiet); err != nil {
		return res, err
	}
	res.add("Created user " + args.Name + ", make sure to set a password")

	groups := args.Groups
	if args.Sudo {
		groups = append(append([]string(nil), groups...), "sudo")
	}
	if len(groups) > 0 {
		cmd := fmt.Sprintf("sudo usermod -aG %s %s", ssh.Quote(strings.Join(groups, ",")), user)
		if _, err := run(ctx, sess, &res, cmd, nil, quiet); err != nil {
			return res, err
		}
		res.add("Added to groups: " + strings.Join(groups, ", "))
	}

	if len(args.PublicKeys) == 0 {
		return res, nil
	}

	sshDir := path.Join(homeDir(args.Name), ".ssh")
	authorized := path.Join(sshDir, "authorized_keys")

	cmd = fmt.Sprintf("sudo install -d -m 700 -o %s -g %s %s", user, user, sshDir)
	if _, err := run(ctx, sess, &res, cmd, nil, quiet); err != nil {
		return res, err
	}
	if err := sess.Upload(ctx, authorized, authorizedKeys(args.PublicKeys), 0600, true); err != nil {
		return res, fmt.Errorf("failed to write authorized_keys: %w", err)
	}
	cmd = fmt.Sprintf("sudo chown %s:%s %s", user, user, authorized)
	if _, err := run(ctx, sess, &res, cmd, nil, quiet); err != nil {
		return res, err
	}
	res.add(fmt.Sprintf("Installed %d public key(s)", len(args.PublicKeys)))
	return res, nil
}

func authorizedKeys(keys []string) []byte {
	var b strings.Builder
	for _, k := range keys {
		k = strings.TrimRight(k, "\n")
		if k == "" {
			continue
		}
		b.WriteString(k)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

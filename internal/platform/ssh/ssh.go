package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/imamik/fleetboot/internal/util/retry"
)

const (
	defaultPort         = 22
	defaultDialTimeout  = 10 * time.Second
	defaultMaxRetries   = 20
	defaultRetryDelay   = 5 * time.Second
	defaultMaxDelay     = 60 * time.Second
	defaultPollInterval = 5 * time.Second
)

// Config holds dialer configuration shared by every connection.
type Config struct {
	Port int

	// DialTimeout bounds the TCP connect and the SSH handshake of one attempt.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection retry attempts.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts. It doubles
	// after every failure up to MaxDelay.
	RetryDelay time.Duration
	MaxDelay   time.Duration

	// AgentSocket is the ssh-agent socket used for authentication and
	// forwarding. Defaults to $SSH_AUTH_SOCK; empty disables the agent.
	AgentSocket string

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback

	Logger logr.Logger
}

// Target identifies the host and account to connect to.
type Target struct {
	Host string
	User string
	// PrivateKey is a PEM encoded key. It may be empty when the agent
	// holds a usable key.
	PrivateKey []byte
	// ForwardAgent forwards the local agent to commands run with RunAndWait.
	ForwardAgent bool
}

// ConnectError is returned when every connection attempt failed.
type ConnectError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to establish SSH connection to %s after %d attempts: %v", e.Addr, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ExecResult holds the captured output of one remote command.
type ExecResult struct {
	Stdout     []string
	Stderr     []string
	ExitStatus int
}

// Dialer opens sessions to remote hosts.
type Dialer struct {
	config Config
}

// NewDialer creates a dialer, filling unset fields with defaults.
func NewDialer(cfg Config) *Dialer {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.AgentSocket == "" {
		cfg.AgentSocket = os.Getenv("SSH_AUTH_SOCK")
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // targets are servers we just created
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	return &Dialer{config: cfg}
}

// Connect dials target, retrying with exponential backoff until it
// succeeds, MaxRetries is exhausted, or ctx is done.
func (d *Dialer) Connect(ctx context.Context, target Target) (*Session, error) {
	if target.Host == "" {
		return nil, fmt.Errorf("target host cannot be empty")
	}
	if target.User == "" {
		return nil, fmt.Errorf("target user cannot be empty")
	}

	auth, agentClient, agentConn, err := d.authMethods(target)
	if err != nil {
		return nil, err
	}
	closeAgent := func() {
		if agentConn != nil {
			_ = agentConn.Close()
		}
	}

	clientConfig := &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: d.config.HostKeyCallback,
		Timeout:         d.config.DialTimeout,
	}

	addr := net.JoinHostPort(target.Host, strconv.Itoa(d.config.Port))
	log := d.config.Logger.WithValues("addr", addr, "user", target.User)

	attempts := 0
	var client *ssh.Client
	err = retry.WithExponentialBackoff(ctx, func() error {
		attempts++
		var dialErr error
		client, dialErr = d.dial(ctx, addr, clientConfig)
		return dialErr
	},
		retry.WithMaxRetries(d.config.MaxRetries),
		retry.WithInitialDelay(d.config.RetryDelay),
		retry.WithMaxDelay(d.config.MaxDelay),
		retry.WithOnRetry(func(attempt int, err error, next time.Duration) {
			log.V(1).Info("ssh connect failed, retrying", "attempt", attempt, "next", next, "error", err.Error())
		}),
	)
	if err != nil {
		closeAgent()
		return nil, &ConnectError{Addr: addr, Attempts: attempts, Err: err}
	}
	log.V(1).Info("ssh connected", "attempts", attempts)

	s := &Session{client: client, host: target.Host, poll: defaultPollInterval, log: log}
	if target.ForwardAgent && agentClient != nil {
		if err := agent.ForwardToAgent(client, agentClient); err != nil {
			_ = client.Close()
			closeAgent()
			return nil, fmt.Errorf("failed to set up agent forwarding: %w", err)
		}
		s.forwardAgent = true
		s.agentConn = agentConn
		return s, nil
	}
	// The agent is only needed for the handshake.
	closeAgent()
	return s, nil
}

func (d *Dialer) dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := (&net.Dialer{Timeout: d.config.DialTimeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Now().Add(d.config.DialTimeout))

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// authMethods returns the key and agent auth methods for target. When an
// agent is reachable, its client and the connection to close after use are
// returned too.
func (d *Dialer) authMethods(target Target) ([]ssh.AuthMethod, agent.ExtendedAgent, io.Closer, error) {
	var methods []ssh.AuthMethod

	if len(target.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(target.PrivateKey)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	var (
		agentClient agent.ExtendedAgent
		agentConn   net.Conn
	)
	if d.config.AgentSocket != "" {
		conn, err := net.Dial("unix", d.config.AgentSocket)
		if err != nil {
			d.config.Logger.V(1).Info("ssh agent unavailable", "socket", d.config.AgentSocket, "error", err.Error())
		} else {
			agentConn = conn
			agentClient = agent.NewClient(conn)
			methods = append(methods, ssh.PublicKeysCallback(agentClient.Signers))
		}
	}

	if len(methods) == 0 {
		return nil, nil, nil, fmt.Errorf("no SSH credentials: provide a private key or run an ssh-agent")
	}
	if agentConn == nil {
		return methods, nil, nil, nil
	}
	return methods, agentClient, agentConn, nil
}

// Session is an open connection to one host. It is owned by a single
// caller; commands run one after another in the order issued.
type Session struct {
	client       *ssh.Client
	host         string
	poll         time.Duration
	forwardAgent bool
	// agentConn stays open while the session forwards the agent.
	agentConn    io.Closer
	log          logr.Logger

	closeOnce sync.Once
}

// Exec runs cmd and waits for it to finish. A non-zero exit status is
// reported in the result, not as an error.
func (s *Session) Exec(ctx context.Context, cmd string) (*ExecResult, error) {
	return s.run(ctx, cmd, nil)
}

// ExecInput runs cmd with input on its stdin.
func (s *Session) ExecInput(ctx context.Context, cmd string, input []byte) (*ExecResult, error) {
	return s.run(ctx, cmd, input)
}

// Upload writes data verbatim to path on the remote host and sets its mode.
// With sudo, the file is written as root.
func (s *Session) Upload(ctx context.Context, path string, data []byte, mode os.FileMode, sudo bool) error {
	prefix := ""
	if sudo {
		prefix = "sudo "
	}
	cmd := fmt.Sprintf("%stee %s > /dev/null && %schmod %o %s", prefix, Quote(path), prefix, mode.Perm(), Quote(path))

	res, err := s.run(ctx, cmd, data)
	if err != nil {
		return err
	}
	if res.ExitStatus != 0 {
		return fmt.Errorf("upload of %s to %s exited with status %d: %s", path, s.host, res.ExitStatus, strings.Join(res.Stderr, "; "))
	}
	return nil
}

// RunAndWait starts cmd and checks for completion every poll interval
// until it exits or ctx is done. The local agent is forwarded when the
// session was opened with ForwardAgent.
func (s *Session) RunAndWait(ctx context.Context, cmd string, poll time.Duration) (*ExecResult, error) {
	if poll <= 0 {
		poll = s.poll
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	defer func() { _ = sess.Close() }()

	if s.forwardAgent {
		if err := agent.RequestAgentForwarding(sess); err != nil {
			return nil, fmt.Errorf("failed to request agent forwarding on %s: %w", s.host, err)
		}
	}

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Start(cmd); err != nil {
		return nil, fmt.Errorf("failed to start command on %s: %w", s.host, err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			_ = sess.Signal(ssh.SIGTERM)
			return nil, ctx.Err()
		case <-ticker.C:
			select {
			case waitErr := <-done:
				return s.result(cmd, &stdout, &stderr, waitErr)
			default:
				s.log.V(1).Info("command still running", "elapsed", time.Since(started).Round(time.Second))
			}
		}
	}
}

// Close closes the connection. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.client.Close()
		if s.agentConn != nil {
			_ = s.agentConn.Close()
		}
	})
	return err
}

func (s *Session) run(ctx context.Context, cmd string, input []byte) (*ExecResult, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	defer func() { _ = sess.Close() }()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	if input != nil {
		sess.Stdin = bytes.NewReader(input)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = sess.Close()
		return nil, ctx.Err()
	case runErr := <-done:
		return s.result(cmd, &stdout, &stderr, runErr)
	}
}

func (s *Session) result(cmd string, stdout, stderr *bytes.Buffer, runErr error) (*ExecResult, error) {
	res := &ExecResult{
		Stdout: splitLines(stdout),
		Stderr: splitLines(stderr),
	}
	if runErr == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitStatus = exitErr.ExitStatus()
		return res, nil
	}
	return res, fmt.Errorf("command failed on %s: %w\nCommand: %s", s.host, runErr, cmd)
}

// splitLines splits output into lines of any length, dropping the final
// newline and carriage returns.
func splitLines(buf *bytes.Buffer) []string {
	text := strings.TrimSuffix(buf.String(), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Quote returns s quoted for a POSIX shell.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("@%+=:,./_-", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

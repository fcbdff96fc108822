package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timing values.
// These values can be customized via environment variables.
type Timeouts struct {
	ServerCreate      time.Duration // Timeout for creating one server
	Reboot            time.Duration // Timeout for a reboot action to finish
	RetryMaxAttempts  int           // Maximum number of API retry attempts
	RetryInitialDelay time.Duration // Initial delay between API retries

	LaunchPollInterval time.Duration // Delay between instance status rounds
	LaunchPollRounds   int           // Status rounds before a launch times out

	SSHMaxRetries int           // SSH connect retries before giving up
	SSHRetryDelay time.Duration // Initial delay between SSH connect attempts
	SSHMaxDelay   time.Duration // Cap on the SSH connect backoff

	ScriptPollInterval time.Duration // How often a running script is checked
	RebootWait         time.Duration // Pause after a dist-upgrade reboot
}

// LoadTimeouts loads timing configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - HCLOUD_TIMEOUT_SERVER_CREATE (default: 10m)
//   - HCLOUD_TIMEOUT_REBOOT (default: 5m)
//   - HCLOUD_RETRY_MAX_ATTEMPTS (default: 5)
//   - HCLOUD_RETRY_INITIAL_DELAY (default: 1s)
//   - FLEETBOOT_LAUNCH_POLL_INTERVAL (default: 15s)
//   - FLEETBOOT_LAUNCH_POLL_ROUNDS (default: 8)
//   - FLEETBOOT_SSH_MAX_RETRIES (default: 20)
//   - FLEETBOOT_SSH_RETRY_DELAY (default: 5s)
//   - FLEETBOOT_SSH_MAX_DELAY (default: 60s)
//   - FLEETBOOT_SCRIPT_POLL_INTERVAL (default: 5s)
//   - FLEETBOOT_REBOOT_WAIT (default: 60s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ServerCreate:       parseDuration("HCLOUD_TIMEOUT_SERVER_CREATE", 10*time.Minute),
		Reboot:             parseDuration("HCLOUD_TIMEOUT_REBOOT", 5*time.Minute),
		RetryMaxAttempts:   parseInt("HCLOUD_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay:  parseDuration("HCLOUD_RETRY_INITIAL_DELAY", 1*time.Second),
		LaunchPollInterval: parseDuration("FLEETBOOT_LAUNCH_POLL_INTERVAL", 15*time.Second),
		LaunchPollRounds:   parseInt("FLEETBOOT_LAUNCH_POLL_ROUNDS", 8),
		SSHMaxRetries:      parseInt("FLEETBOOT_SSH_MAX_RETRIES", 20),
		SSHRetryDelay:      parseDuration("FLEETBOOT_SSH_RETRY_DELAY", 5*time.Second),
		SSHMaxDelay:        parseDuration("FLEETBOOT_SSH_MAX_DELAY", 60*time.Second),
		ScriptPollInterval: parseDuration("FLEETBOOT_SCRIPT_POLL_INTERVAL", 5*time.Second),
		RebootWait:         parseDuration("FLEETBOOT_REBOOT_WAIT", 60*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set, parsing fails, or the value is below 1, the
// default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}

	return i
}

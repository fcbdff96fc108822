// Package hcloud implements the compute provider on top of the Hetzner Cloud
// API.
//
// RealClient launches batches of servers, reports their status, renames and
// labels them once they run, looks them up by label and reboots them. API
// calls that may hit transient failures (server creation, relabeling while an
// action still holds the lock) are retried with exponential backoff; invalid
// input is returned immediately.
//
// Timeouts and retry parameters come from config.Timeouts:
//
//   - HCLOUD_TIMEOUT_SERVER_CREATE: server creation timeout (default: 10m)
//   - HCLOUD_TIMEOUT_REBOOT: reboot action timeout (default: 5m)
//   - HCLOUD_RETRY_MAX_ATTEMPTS: maximum retry attempts (default: 5)
//   - HCLOUD_RETRY_INITIAL_DELAY: initial retry delay (default: 1s)
package hcloud

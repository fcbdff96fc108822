// Package retry provides backoff and polling helpers for operations that
// only succeed after a remote system settles.
//
// [WithExponentialBackoff] retries a failing operation with growing delays,
// used for SSH handshakes and Hetzner Cloud API calls. [Poll] checks a
// condition at a fixed interval for a bounded number of rounds, used to wait
// for freshly launched servers to report running.
package retry

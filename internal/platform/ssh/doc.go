// Package ssh opens remote sessions on freshly launched servers.
//
// A [Dialer] connects with bounded exponential backoff, since a new server
// accepts SSH only some time after it reports running. A [Session] runs
// commands with separate stdout and stderr capture, uploads files over
// stdin, and runs long scripts by polling for completion.
//
// Host key verification is disabled by default because every target is a
// server we just created. Set Config.HostKeyCallback to enforce it.
package ssh

// Package keygen generates SSH key pairs for launching servers.
//
// Private keys are PEM encoded and written next to the other configured
// keys; public keys are in OpenSSH authorized_keys format, ready to be
// registered with Hetzner Cloud.
package keygen

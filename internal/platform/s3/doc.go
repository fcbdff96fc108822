// Package s3 provides a client for S3-compatible object storage such as
// Hetzner Object Storage.
//
// Besides plain bucket and object operations it archives run reports under
// runs/<run-id>/<build>.yaml, so the outcome of every launch can be looked
// up after the terminal is gone.
package s3

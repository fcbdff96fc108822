// Package metrics records launch and provisioning metrics with Prometheus.
//
// fleetboot is a short-lived CLI, so metrics are not scraped. When a
// Pushgateway is configured, the registry is pushed once at the end of a run.
package metrics

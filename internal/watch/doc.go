// Package watch runs the long-lived alarm watcher.
//
// Two producers feed one registry loop: a poller that refreshes the first
// page at a fixed interval and the push subscriber that delivers new alarms
// as they are raised. The daemon also serves the standard gRPC health
// service, reporting each producer separately, and Prometheus metrics.
package watch

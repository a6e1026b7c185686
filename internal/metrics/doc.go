// Package metrics defines the Prometheus collectors of the alarm console.
//
// A *Metrics value is safe to use when nil, so library packages accept one
// optionally and only the watch daemon registers and serves them.
package metrics

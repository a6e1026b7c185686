// Package config defines the console settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds the alarm service, speaker and push endpoints, the
// remote call timeout, the session TTL and the fixed page size.
package config

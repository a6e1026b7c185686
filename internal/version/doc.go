// Package version carries the build metadata of alarmctl.
//
// Version, Commit and BuildTime are set with -ldflags at release time.
package version

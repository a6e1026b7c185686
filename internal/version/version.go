package version

import "fmt"

var (
	// Version is the release of the console.
	Version = "0.1.0"
	// Commit is the short git SHA the binary was built from.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// product names the console in user agents.
const product = "alarmctl"

// Short returns the release only.
func Short() string {
	return Version
}

// Full describes the build for the version command.
func Full() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", product, Version, Commit, BuildTime)
}

// UserAgent is sent with every call to the alarm service.
func UserAgent() string {
	return product + "/" + Version
}

// Package console is the entry point used by the CLI and the watch daemon.
//
// It ties the session store, the access gate, the alarm registry, the
// coordinator and the remote client together. Every method checks the
// session first and reports failures as errors; a failed fetch leaves the
// registry at its last known state and returns a *FetchError.
package console

// Package app assembles the console from its settings file: the session store
// restored from disk, the REST client and the console facade. Commands open
// an App at start and close it on exit so the session survives between runs.
package app

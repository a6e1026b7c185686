// Package logger wraps zap for the console.
//
// A global sugared logger writes to stderr at a level shared through a
// zap.AtomicLevel, so the CLI can raise verbosity after startup. Components
// take the logger from their context: WithName and WithFields scope it to a
// component or an alarm, and the KV helpers log through it.
package logger

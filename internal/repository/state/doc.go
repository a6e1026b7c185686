// Package state implements persistence for the console session.
//
// The FileRepository stores and loads session items as protobuf JSON on disk
// and satisfies the session.Repository interface the CLI restores from on
// start and saves to on exit.
package state

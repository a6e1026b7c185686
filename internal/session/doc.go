// Package session implements the injectable Session Store.
//
// A Store keeps the authentication token, user id and role of the logged in
// user as three items sharing one expiry. Every read checks the expiry of
// its own item against the store clock and deletes the item when it has
// passed, so an expired session disappears lazily on first access. The
// store can be saved to and restored from a Repository so consecutive CLI
// invocations share a login.
package session

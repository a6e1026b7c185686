// Package user contains the identity types shared by the session store and
// the access gate: the Role of an authenticated user, the Requirement a view
// or action places on it, and the User record returned by the alarm service.
package user

package user

import "strings"

// Role is the authorization role of an authenticated user.
type Role string

const (
	// RoleGuard investigates alarms in the field.
	RoleGuard Role = "GUARD"
	// RoleOperator triages alarms from the console.
	RoleOperator Role = "OPERATOR"
	// RoleManager supervises operators and may act as one.
	RoleManager Role = "MANAGER"
	// RoleAdmin has every permission.
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalizes a role string; ok is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}

	return r, true
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuard, RoleOperator, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }

// Requirement is what a protected view or action demands of the caller:
// either a concrete role or Any for "logged in with any role".
type Requirement string

// Any is satisfied by every authenticated session.
const Any Requirement = "ANY"

// Require converts a role into a Requirement.
func Require(r Role) Requirement { return Requirement(r) }

// Satisfied reports whether role meets the requirement.
func (q Requirement) Satisfied(role Role) bool {
	if q == Any {
		return role.Valid()
	}

	return Role(q) == role
}

// User is the public profile of an account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

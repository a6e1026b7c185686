package access

import (
	"errors"
	"fmt"

	"github.com/panoraguard/alarm-console/internal/domain/user"
)

// Decision is the result of an authorization check.
type Decision bool

const (
	// Deny refuses the view or action.
	Deny Decision = false
	// Allow permits the view or action.
	Allow Decision = true
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	if d {
		return "allow"
	}

	return "deny"
}

var (
	// ErrUnauthorized means no live session exists.
	ErrUnauthorized = errors.New("not logged in or session expired")
	// ErrForbidden means the session role does not meet the requirement.
	ErrForbidden = errors.New("role not permitted")
)

// Authorize decides whether role satisfies the requirement.
func Authorize(role user.Role, req user.Requirement) Decision {
	return Decision(req.Satisfied(role))
}

// Sessions is the part of the session store the gate reads.
type Sessions interface {
	Token() (string, bool)
	UserID() (string, bool)
	Role() (user.Role, bool)
}

// Principal is the caller identity established by a successful check.
type Principal struct {
	// Token is the bearer credential for remote calls.
	Token string
	// UserID identifies the caller; it becomes operator_id on transitions.
	UserID string
	// Role is the caller role.
	Role user.Role
}

// Gate re-reads the session on every check so that a session expiring
// between two actions is noticed by the second one.
type Gate struct {
	sessions Sessions
}

// NewGate creates a gate over the session store.
func NewGate(sessions Sessions) *Gate {
	return &Gate{sessions: sessions}
}

// Require returns the principal when a live session satisfies req.
// Role is read after token; any absent value means no session.
func (g *Gate) Require(req user.Requirement) (Principal, error) {
	token, ok := g.sessions.Token()
	if !ok {
		return Principal{}, ErrUnauthorized
	}

	role, ok := g.sessions.Role()
	if !ok {
		return Principal{}, ErrUnauthorized
	}

	userID, ok := g.sessions.UserID()
	if !ok {
		return Principal{}, ErrUnauthorized
	}

	if Authorize(role, req) == Deny {
		return Principal{}, fmt.Errorf("%s requires %s: %w", role, req, ErrForbidden)
	}

	return Principal{
		Token:  token,
		UserID: userID,
		Role:   role,
	}, nil
}

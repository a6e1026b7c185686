package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoImage is returned when the alarm has no stored snapshot.
	ErrNoImage = errors.New("alarm has no image")
	// ErrNotLoggedIn is returned for authenticated calls without a token.
	ErrNotLoggedIn = errors.New("no session token")

	errBaseURLRequired = errors.New("base URL must be provided")
	errSpeakerNotSet   = errors.New("speaker URL is not configured")
	errIDRequired      = errors.New("identifier must be provided")
)

// StatusError is a non-2xx reply from a remote service.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
	// Message is the server-provided message, when any.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server replied %d %s", e.Code, http.StatusText(e.Code))
	}

	return fmt.Sprintf("server replied %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError

	return errors.As(err, &se) && se.Code == code
}

package console

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned by Login for accounts without a console home.
var ErrUnknownRole = errors.New("unknown role")

// FetchError is a failed read from the alarm service. Data returned alongside
// it is the last known state.
type FetchError struct {
	// Op names the failed read.
	Op string
	// Err is the cause.
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

package session

import (
	"fmt"
	"time"
)

// UnsupportedBrowserError is returned for a browser kind that is unknown,
// or that the selected engine cannot drive.
type UnsupportedBrowserError struct {
	Name   string
	Engine string
}

func (e *UnsupportedBrowserError) Error() string {
	if e.Engine != "" {
		return fmt.Sprintf("browser %q is not supported by the %s engine", e.Name, e.Engine)
	}
	return fmt.Sprintf("unsupported browser %q", e.Name)
}

// SessionAlreadyActiveError is returned by Launch on a session that has
// not been closed.
type SessionAlreadyActiveError struct {
	State State
}

func (e *SessionAlreadyActiveError) Error() string {
	return fmt.Sprintf("browser session is already active (state %s)", e.State)
}

// TeardownTimeoutWarning is logged when a teardown step does not finish
// in time. It is never returned.
type TeardownTimeoutWarning struct {
	Step    string
	Timeout time.Duration
}

func (w *TeardownTimeoutWarning) Error() string {
	return fmt.Sprintf("teardown step %q did not finish within %s", w.Step, w.Timeout)
}

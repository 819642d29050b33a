package pageobject

import (
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotReady is returned when a controller is created on a run
// whose session has no browser.
var ErrSessionNotReady = errors.New("browser session is not ready")

// ElementNotFoundTimeout is returned when no element matching a locator
// got attached to the DOM in time.
type ElementNotFoundTimeout struct {
	Locator  string
	Selector string
	Elapsed  time.Duration
	Err      error
}

func (e *ElementNotFoundTimeout) Error() string {
	return fmt.Sprintf("element %q (%s) not found after %.2fs", e.Locator, e.Selector, e.ElapsedSeconds())
}

// ElapsedSeconds returns the time spent waiting, in seconds.
func (e *ElementNotFoundTimeout) ElapsedSeconds() float64 { return e.Elapsed.Seconds() }

func (e *ElementNotFoundTimeout) Unwrap() error { return e.Err }

// ElementNotVisibleTimeout is returned when an element was attached but
// did not become visible in time.
type ElementNotVisibleTimeout struct {
	Locator  string
	Selector string
	Elapsed  time.Duration
	Err      error
}

func (e *ElementNotVisibleTimeout) Error() string {
	return fmt.Sprintf("element %q (%s) not visible after %.2fs", e.Locator, e.Selector, e.ElapsedSeconds())
}

// ElapsedSeconds returns the time spent waiting, in seconds.
func (e *ElementNotVisibleTimeout) ElapsedSeconds() float64 { return e.Elapsed.Seconds() }

func (e *ElementNotVisibleTimeout) Unwrap() error { return e.Err }

// InteractionTimeout is returned when an action on an element, or the
// wait that precedes it, ran out of time. Err holds the cause, which may
// itself be an ElementNotFoundTimeout or ElementNotVisibleTimeout.
type InteractionTimeout struct {
	Action   string
	Locator  string
	Selector string
	// Text is the text being typed, for fill actions.
	Text    string
	Elapsed time.Duration
	Err     error
}

func (e *InteractionTimeout) Error() string {
	msg := fmt.Sprintf("%s on %q (%s)", e.Action, e.Locator, e.Selector)
	if e.Text != "" {
		msg += fmt.Sprintf(" with text %q", e.Text)
	}
	msg += fmt.Sprintf(" timed out after %.2fs", e.ElapsedSeconds())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// ElapsedSeconds returns the time spent on the action, in seconds.
func (e *InteractionTimeout) ElapsedSeconds() float64 { return e.Elapsed.Seconds() }

func (e *InteractionTimeout) Unwrap() error { return e.Err }

// TabIndexOutOfRange is returned for a tab index outside 0 <= Index < Count.
type TabIndexOutOfRange struct {
	Index int
	Count int
}

func (e *TabIndexOutOfRange) Error() string {
	return fmt.Sprintf("tab index %d out of range, %d tabs open", e.Index, e.Count)
}

// TabNotFoundWarning is logged when no open tab matches a URL. It is
// never returned.
type TabNotFoundWarning struct {
	URL string
}

func (w *TabNotFoundWarning) Error() string {
	return fmt.Sprintf("no open tab with URL containing %q", w.URL)
}

package api

import "errors"

// ErrTimeout is matched, with errors.Is, by every engine error caused by an
// operation running out of time.
var ErrTimeout = errors.New("timeout")

// ErrTargetClosed is returned for operations on closed pages or contexts.
var ErrTargetClosed = errors.New("target closed")

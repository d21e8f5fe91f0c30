package controller

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice on the
	// same controller. A controller drives exactly one session.
	ErrAlreadyStarted = errors.New("controller already started")

	// ErrClosed is returned when Start is called on a closed controller.
	ErrClosed = errors.New("controller is closed")
)

package companion

import "errors"

var (
	// ErrNoClient indicates a start attempt without a model client and
	// without demo mode forced.
	ErrNoClient = errors.New("companion: no model client configured")

	// ErrNoImage indicates a start attempt before any image was set.
	ErrNoImage = errors.New("companion: no image set")

	// ErrNotIdle indicates a start attempt while a session is already running.
	ErrNotIdle = errors.New("companion: session already started")

	// ErrNotListening indicates a mic toggle or typed submission outside the
	// listening state.
	ErrNotListening = errors.New("companion: not listening")

	// ErrNotInError indicates a retry outside the error state.
	ErrNotInError = errors.New("companion: nothing to retry")

	// ErrEmptyText indicates a typed submission with no content.
	ErrEmptyText = errors.New("companion: empty text")
)

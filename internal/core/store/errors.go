package store

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when an id names no session in the collection
var ErrSessionNotFound = errors.New("session not found")

// ReadError reports a persisted blob that could not be read or decoded.
// The store degrades to an empty collection when it occurs.
type ReadError struct {
	Key string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to load chat history from %q: %v", e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failed best-effort write. In-memory state is kept.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to persist chat history to %q: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

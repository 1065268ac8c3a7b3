package sessions

import "errors"

var (
	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrTerminal indicates an update was rejected because the session is
	// already FINISHED or ERROR.
	ErrTerminal = errors.New("session is terminal")
)

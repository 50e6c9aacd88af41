package session

import "errors"

var (
	ErrClosed         = errors.New("session: closed")
	ErrAlreadyRunning = errors.New("session: already running")
)

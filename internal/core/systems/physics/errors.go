package physics

import "errors"

var (
	ErrUnknownBody   = errors.New("physics: unknown body")
	ErrInvalidShape  = errors.New("physics: invalid shape")
	ErrNilCallback   = errors.New("physics: nil sensor callback")
	ErrNonFiniteBody = errors.New("physics: non-finite body state")
)

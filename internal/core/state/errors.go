package state

import "errors"

var ErrUnknownField = errors.New("state: unknown field")

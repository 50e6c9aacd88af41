package config

import "errors"

var (
	ErrInvalidConfig     = errors.New("config: invalid")
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
)

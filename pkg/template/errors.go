package template

import "errors"

// Sentinel errors shared across template and coercion operations
var (
	ErrInvalidTemplate   = errors.New("invalid template syntax")
	ErrNilContext        = errors.New("nil template context")
	ErrUndefinedVariable = errors.New("undefined variable")

	ErrInvalidNumber  = errors.New("invalid number value")
	ErrInvalidBoolean = errors.New("invalid boolean value")
	ErrInvalidJSON    = errors.New("invalid JSON value")
)

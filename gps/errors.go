package gps

import (
	"errors"
	"fmt"
)

// Common errors returned by the gps package
var (
	ErrValidation     = errors.New("validation error")
	ErrAmbiguousSpeed = errors.New("speed must be given in exactly one unit")
	ErrUnknownMessage = errors.New("unknown message type")
)

// ValidationError reports a value that is outside the domain an encoder accepts.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

package telemetry

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField    = errors.New("missing telemetry field")
	ErrFieldType       = errors.New("telemetry field has unexpected type")
	ErrInvalidBaseURL  = errors.New("base URL is neither an http(s) URL nor a readable file")
	ErrNoAccessToken   = errors.New("authentication failed: access token not found in response")
	ErrEmptyResponse   = errors.New("no data found in response")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoFix           = errors.New("receiver has not reported a fix yet")
	ErrReplayFinished  = errors.New("replay finished")
	ErrGatewayNotFound = errors.New("default gateway not found")
)

// MissingFieldError names the absent key. It matches ErrMissingField.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingField, e.Key)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

package buoy

import "errors"

// Common errors returned by the buoy service
var (
	ErrAlreadyRunning  = errors.New("buoy is already running")
	ErrNotRunning      = errors.New("buoy is not running")
	ErrInvalidInterval = errors.New("cycle interval must be positive")
	ErrNoFetcher       = errors.New("a telemetry source is required")
	ErrNoEngine        = errors.New("an arbitration engine is required")
)

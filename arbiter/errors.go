package arbiter

import "errors"

// Common errors returned by the arbitration engine
var (
	ErrMalformedScan       = errors.New("malformed WiFi scan block")
	ErrInvalidScanAttempts = errors.New("scan attempts must be at least 1")
	ErrInvalidScanDelay    = errors.New("scan delay must be non-negative")
	ErrInvalidThresholds   = errors.New("excellent HDOP threshold must not exceed the poor threshold")
	ErrInvalidSpeedUnit    = errors.New("speed unit must be one of ms, kmh, knots, mph")
	ErrNoBands             = errors.New("at least one WiFi band is required")
)

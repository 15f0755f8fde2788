package buoy

import (
	"time"

	"github.com/porcej/njord/arbiter"
	"github.com/porcej/njord/gps"
)

// Config holds the cycle settings of the buoy service
type Config struct {
	Interval    time.Duration   `json:"interval"`     // pause between cycles
	MessageType gps.MessageType `json:"message_type"` // wire format sent each cycle
	Talker      gps.Talker      `json:"talker"`       // NMEA talker identifier
}

// DefaultConfig sends one TAIP-PV report per second.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Second,
		MessageType: gps.MessageTAIPPV,
		Talker:      gps.TalkerGPS,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	switch c.MessageType {
	case gps.MessageTAIPPV, gps.MessageNMEA, gps.MessageNMEARMC:
	default:
		return gps.ErrUnknownMessage
	}
	if !c.Talker.Valid() {
		return &gps.ValidationError{Field: "talker", Value: string(c.Talker), Reason: "not an NMEA talker identifier"}
	}
	return nil
}

// Report describes one completed cycle.
type Report struct {
	Cycle       uint64               `json:"cycle"`
	Timestamp   time.Time            `json:"timestamp"`
	Outcome     arbiter.Outcome      `json:"outcome"`
	State       *gps.State           `json:"state,omitempty"`
	AccessPoint *arbiter.AccessPoint `json:"access_point,omitempty"`
	HDOP        float64              `json:"hdop"`
	Attempts    int                  `json:"scan_attempts"`
	Messages    []string             `json:"messages,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// Sent reports whether the cycle delivered a position.
func (r Report) Sent() bool {
	return r.Error == "" && len(r.Messages) > 0
}

// Status represents the current buoy status
type Status struct {
	Running           bool                 `json:"running"`
	StartTime         time.Time            `json:"start_time,omitempty"`
	ElapsedTime       time.Duration        `json:"elapsed_time"`
	Config            Config               `json:"config"`
	Cycles            uint64               `json:"cycles"`
	Sent              uint64               `json:"sent"`
	Skipped           uint64               `json:"skipped"`
	Failures          uint64               `json:"failures"`
	LastReport        *Report              `json:"last_report,omitempty"`
	CachedAccessPoint *arbiter.AccessPoint `json:"cached_access_point,omitempty"`
	KnownAccessPoints int                  `json:"known_access_points"`
	TrackPoints       int                  `json:"track_points,omitempty"`
	ReplayIndex       int                  `json:"replay_index,omitempty"`
	ReplayTotal       int                  `json:"replay_total,omitempty"`
}

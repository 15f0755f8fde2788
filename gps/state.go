package gps

import (
	"fmt"
	"time"
)

// MessageType selects the wire format produced by State.Messages.
type MessageType string

const (
	MessageTAIPPV  MessageType = "TAIP_PV"
	MessageNMEA    MessageType = "NMEA"
	MessageNMEARMC MessageType = "NMEA_RMC"
)

// State is one resolved position sample and everything the encoders need
// to describe it.
type State struct {
	FixTime   time.Time `json:"fix_time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"` // meters
	Heading   float64   `json:"heading"`  // degrees
	Speed     float64   `json:"speed"`    // meters per second

	FixQuality          int         `json:"fix_quality"` // GGA quality indicator
	SatellitesInView    int         `json:"satellites_in_view"`
	SatellitesUsed      int         `json:"satellites_used"`
	PDOP                float64     `json:"pdop"`
	HDOP                float64     `json:"hdop"`
	VDOP                float64     `json:"vdop"`
	Separation          float64     `json:"separation"` // geoid separation, meters
	DifferentialAge     float64     `json:"differential_age,omitempty"`
	DifferentialStation string      `json:"differential_station,omitempty"`
	Satellites          []Satellite `json:"satellites,omitempty"`

	TAIPID string `json:"taip_id"`
	Source Source `json:"source"`
	Age    Age    `json:"age"`
	Talker Talker `json:"talker"`
	Mode   Mode   `json:"mode"`

	clock func() time.Time
}

// NewState returns a state stamped with the current second and the
// protocol defaults: unknown source, age not available, GPS talker.
func NewState() *State {
	return NewStateWithClock(time.Now)
}

// NewStateWithClock is NewState with an explicit time source.
func NewStateWithClock(clock func() time.Time) *State {
	s := &State{
		TAIPID: DefaultTAIPID,
		Source: SourceUnknown,
		Age:    AgeNotAvailable,
		Talker: TalkerGPS,
		Mode:   ModeInvalid,
		clock:  clock,
	}
	s.FixTime = s.now()
	return s
}

func (s *State) now() time.Time {
	clock := s.clock
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC().Truncate(time.Second)
}

// Update carries the basic values of one telemetry sample. Nil fields
// leave the current value untouched, except FixTime: a nil fix time
// stamps the state with the current second.
type Update struct {
	FixTime   *int64 // milliseconds since the Unix epoch
	Latitude  *float64
	Longitude *float64
	Heading   *float64

	// At most one speed unit may be set.
	SpeedMS    *float64
	SpeedKMH   *float64
	SpeedKnots *float64
	SpeedMPH   *float64

	TAIPID *string
	Mode   *Mode
	Source *Source
	Age    *Age
}

// Ptr returns a pointer to v, for building an Update inline.
func Ptr[T any](v T) *T {
	return &v
}

// speed resolves the single speed unit of u into meters per second.
func (u Update) speed() (*float64, error) {
	var speed *float64
	set := 0
	for _, c := range []struct {
		value   *float64
		convert func(float64) float64
	}{
		{u.SpeedMS, func(v float64) float64 { return v }},
		{u.SpeedKMH, KMHToMS},
		{u.SpeedKnots, KnotsToMS},
		{u.SpeedMPH, MPHToMS},
	} {
		if c.value == nil {
			continue
		}
		set++
		speed = Ptr(c.convert(*c.value))
	}
	if set > 1 {
		return nil, ErrAmbiguousSpeed
	}
	return speed, nil
}

// Set applies u. The state is left unchanged when u is rejected.
func (s *State) Set(u Update) error {
	speed, err := u.speed()
	if err != nil {
		return err
	}
	if u.Source != nil && !u.Source.Valid() {
		return &ValidationError{Field: "source", Value: int(*u.Source), Reason: "not a TAIP source code"}
	}
	if u.Age != nil && !u.Age.Valid() {
		return &ValidationError{Field: "age", Value: int(*u.Age), Reason: "not a TAIP age code"}
	}
	if u.Mode != nil && !u.Mode.Valid() {
		return &ValidationError{Field: "mode", Value: string(*u.Mode), Reason: "not an NMEA mode indicator"}
	}

	if u.FixTime != nil {
		s.FixTime = time.UnixMilli(*u.FixTime).UTC().Truncate(time.Second)
	} else {
		s.FixTime = s.now()
	}
	setIf(&s.Latitude, u.Latitude)
	setIf(&s.Longitude, u.Longitude)
	setIf(&s.Heading, u.Heading)
	setIf(&s.Speed, speed)
	if u.TAIPID != nil {
		s.TAIPID = FormatTAIPID(*u.TAIPID)
	}
	setIf(&s.Mode, u.Mode)
	setIf(&s.Source, u.Source)
	setIf(&s.Age, u.Age)
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Messages renders the state in the requested wire format. TAIP_PV and
// NMEA_RMC yield a single message; NMEA yields every sentence type.
func (s *State) Messages(kind MessageType) ([]string, error) {
	switch kind {
	case MessageTAIPPV:
		msg, err := s.TAIPPV()
		if err != nil {
			return nil, err
		}
		return []string{msg}, nil
	case MessageNMEA:
		return s.NMEA()
	case MessageNMEARMC:
		msg, err := s.RMC()
		if err != nil {
			return nil, err
		}
		return []string{msg}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, kind)
}

// Clone returns a copy that shares no slices with s.
func (s *State) Clone() *State {
	c := *s
	c.Satellites = append([]Satellite(nil), s.Satellites...)
	return &c
}

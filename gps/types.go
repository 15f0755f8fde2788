package gps

import (
	"strconv"
	"time"
)

// Source is the TAIP data source code: the technology behind a fix.
type Source int

const (
	SourceGPS2D      Source = 0
	SourceGPS3D      Source = 1
	SourceDGPS2D     Source = 2
	SourceDGPS3D     Source = 3
	SourceDR         Source = 6 // dead reckoning
	SourceDegradedDR Source = 8
	SourceUnknown    Source = 9
)

var sourceNames = map[Source]string{
	SourceGPS2D:      "GPS 2D",
	SourceGPS3D:      "GPS 3D",
	SourceDGPS2D:     "DGPS 2D",
	SourceDGPS3D:     "DGPS 3D",
	SourceDR:         "dead reckoning",
	SourceDegradedDR: "degraded dead reckoning",
	SourceUnknown:    "unknown",
}

// Valid reports whether s is one of the defined TAIP source codes.
func (s Source) Valid() bool {
	_, ok := sourceNames[s]
	return ok
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "Source(" + strconv.Itoa(int(s)) + ")"
}

// Age is the TAIP data age code.
type Age int

const (
	AgeNotAvailable Age = 0
	AgeOld          Age = 1 // older than 10 seconds
	AgeFresh        Age = 2 // less than 10 seconds
)

// FreshnessWindow separates AgeFresh from AgeOld.
const FreshnessWindow = 10 * time.Second

// Valid reports whether a is a defined age code.
func (a Age) Valid() bool {
	return a >= AgeNotAvailable && a <= AgeFresh
}

func (a Age) String() string {
	switch a {
	case AgeNotAvailable:
		return "not available"
	case AgeOld:
		return "old"
	case AgeFresh:
		return "fresh"
	}
	return "Age(" + strconv.Itoa(int(a)) + ")"
}

// AgeOf classifies a fix taken at fix as seen at now.
func AgeOf(fix, now time.Time) Age {
	if fix.IsZero() {
		return AgeNotAvailable
	}
	if now.Sub(fix) < FreshnessWindow {
		return AgeFresh
	}
	return AgeOld
}

// Mode is the NMEA positioning mode indicator.
type Mode string

const (
	ModeAutonomous   Mode = "A"
	ModeDifferential Mode = "D"
	ModeEstimated    Mode = "E" // dead reckoning
	ModeManual       Mode = "M"
	ModeInvalid      Mode = "N"
)

// Valid reports whether m is a defined mode indicator.
func (m Mode) Valid() bool {
	switch m {
	case ModeAutonomous, ModeDifferential, ModeEstimated, ModeManual, ModeInvalid:
		return true
	}
	return false
}

// Status returns the A/V validity flag carried by RMC and GLL for this mode.
func (m Mode) Status() PositionStatus {
	if m == ModeInvalid || !m.Valid() {
		return StatusInvalid
	}
	return StatusValid
}

// PositionStatus is the NMEA data validity flag.
type PositionStatus string

const (
	StatusValid   PositionStatus = "A"
	StatusInvalid PositionStatus = "V"
)

// Talker is the NMEA sentence source prefix.
type Talker string

const (
	TalkerGalileo     Talker = "GA"
	TalkerBeiDou      Talker = "GB"
	TalkerNavIC       Talker = "GI"
	TalkerGLONASS     Talker = "GL"
	TalkerGNSS        Talker = "GN"
	TalkerGPS         Talker = "GP"
	TalkerQZSS        Talker = "GQ"
	TalkerProprietary Talker = "P"
)

// Valid reports whether t is a known talker identifier.
func (t Talker) Valid() bool {
	switch t {
	case TalkerGalileo, TalkerBeiDou, TalkerNavIC, TalkerGLONASS,
		TalkerGNSS, TalkerGPS, TalkerQZSS, TalkerProprietary:
		return true
	}
	return false
}

// Satellite represents a satellite in view, as listed by GSV
type Satellite struct {
	ID        int `json:"id"`
	Elevation int `json:"elevation"` // degrees above horizon
	Azimuth   int `json:"azimuth"`   // degrees from north
	SNR       int `json:"snr"`       // signal-to-noise ratio
}

// TrackPoint represents a point in a GPS track
type TrackPoint struct {
	Lat       float64   `xml:"lat,attr"`
	Lon       float64   `xml:"lon,attr"`
	Elevation float64   `xml:"ele"`
	Time      time.Time `xml:"time"`
}

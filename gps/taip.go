package gps

import (
	"fmt"
	"math"
	"strings"
)

// DefaultTAIPID is the vehicle ID used when telemetry carries none.
const DefaultTAIPID = "0000"

// FormatTAIPID renders id as exactly four characters: shorter values are
// zero padded on the left, longer ones keep their rightmost four.
func FormatTAIPID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 4 {
		return id[len(id)-4:]
	}
	return strings.Repeat("0", 4-len(id)) + id
}

// TAIPPV generates a TAIP PV (position/velocity) report:
//
//	>RPVtttttSAAAAAAASOOOOOOOOvvvhhhsa;ID=iiii;*cc<
//
// The checksum covers everything from '>' through '*'.
func (s *State) TAIPPV() (string, error) {
	if !s.Source.Valid() {
		return "", &ValidationError{Field: "source", Value: int(s.Source), Reason: "not a TAIP source code"}
	}
	if !s.Age.Valid() {
		return "", &ValidationError{Field: "age", Value: int(s.Age), Reason: "not a TAIP age code"}
	}
	// Coordinates are rendered as given; only values that cannot fill the
	// fixed-width fields are refused.
	if !fitsCoordinate(s.Latitude, 100) {
		return "", &ValidationError{Field: "latitude", Value: s.Latitude, Reason: "does not fit the TAIP field"}
	}
	if !fitsCoordinate(s.Longitude, 1000) {
		return "", &ValidationError{Field: "longitude", Value: s.Longitude, Reason: "does not fit the TAIP field"}
	}

	mph := MSToMPH(s.Speed)
	if !fitsThreeDigits(mph) {
		return "", &ValidationError{Field: "speed", Value: mph, Reason: "does not fit three mph digits"}
	}
	if !fitsThreeDigits(s.Heading) {
		return "", &ValidationError{Field: "heading", Value: s.Heading, Reason: "does not fit three digits"}
	}

	message := fmt.Sprintf(">RPV%05d%s%s%03.0f%03.0f%d%d;ID=%s;*",
		GPSTimeOfDay(s.FixTime.UTC()),
		signedFixed(s.Latitude, 7),
		signedFixed(s.Longitude, 8),
		mph,
		s.Heading,
		int(s.Source),
		int(s.Age),
		FormatTAIPID(s.TAIPID))

	return message + Checksum(message) + "<", nil
}

// signedFixed renders value*1e5 as a sign followed by width zero-padded digits.
func signedFixed(value float64, width int) string {
	sign := "+"
	if value < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%0*.0f", sign, width, math.Abs(value)*100000)
}

func fitsCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v)*100000 < limit*100000-0.5
}

func fitsThreeDigits(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && math.RoundToEven(v) <= 999
}

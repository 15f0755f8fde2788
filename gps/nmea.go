package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Checksum returns the XOR of every byte of body as two uppercase hex digits.
// Callers pass only the checksummed span, without delimiters.
func Checksum(body string) string {
	var checksum byte
	for i := 0; i < len(body); i++ {
		checksum ^= body[i]
	}
	return fmt.Sprintf("%02X", checksum)
}

// PackNMEA wraps a sentence body (talker, type and fields) into a
// complete sentence with checksum and CRLF.
func PackNMEA(body string) string {
	return "$" + body + "*" + Checksum(body) + "\r\n"
}

// NMEALatLon converts decimal degrees into the NMEA DDMM.MMMM,H form
// (DDDMM.MMMM,H for longitude).
func NMEALatLon(value float64, latitude bool) (string, error) {
	limit, width, pos, neg, field := 180.0, 3, "E", "W", "longitude"
	if latitude {
		limit, width, pos, neg, field = 90.0, 2, "N", "S", "latitude"
	}
	if math.IsNaN(value) || value < -limit || value > limit {
		return "", &ValidationError{Field: field, Value: value, Reason: "out of range"}
	}

	degrees := math.Trunc(value)
	minutes := (math.Abs(value) - math.Abs(degrees)) * 60
	hemisphere := pos
	if value < 0 {
		hemisphere = neg
	}
	return fmt.Sprintf("%0*d%07.4f,%s", width, int(math.Abs(degrees)), minutes, hemisphere), nil
}

// formatFloat renders f in its shortest round-trip form, always with a
// decimal point ("0.0", "1.5", "545.4").
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// nmeaTime renders HHMMSS.ss
func (s *State) nmeaTime() string {
	t := s.FixTime.UTC()
	return fmt.Sprintf("%s.%02d", t.Format("150405"), t.Nanosecond()/10000000)
}

func (s *State) coordinates() (string, error) {
	lat, err := NMEALatLon(s.Latitude, true)
	if err != nil {
		return "", err
	}
	lon, err := NMEALatLon(s.Longitude, false)
	if err != nil {
		return "", err
	}
	return lat + "," + lon, nil
}

func (s *State) pack(sentence string, fields ...string) string {
	return PackNMEA(string(s.Talker) + sentence + "," + strings.Join(fields, ","))
}

// GGA generates a GGA (Global Positioning System Fix Data) sentence
func (s *State) GGA() (string, error) {
	position, err := s.coordinates()
	if err != nil {
		return "", err
	}

	dgpsAge, dgpsID := "", ""
	if s.DifferentialStation != "" {
		dgpsAge = formatFloat(s.DifferentialAge)
		dgpsID = s.DifferentialStation
	}

	return s.pack("GGA",
		s.FixTime.UTC().Format("150405"),
		position,
		strconv.Itoa(s.FixQuality),
		fmt.Sprintf("%02d", s.SatellitesUsed),
		formatFloat(s.PDOP),
		formatFloat(s.Altitude), "M",
		formatFloat(s.Separation), "M",
		dgpsAge, dgpsID), nil
}

// GLL generates a GLL (Geographic Position - Latitude/Longitude) sentence
func (s *State) GLL() (string, error) {
	position, err := s.coordinates()
	if err != nil {
		return "", err
	}
	return s.pack("GLL", position, s.FixTime.UTC().Format("150405"), string(s.Mode.Status())), nil
}

// GSA generates a GSA (DOP and active satellites) sentence. The PRN slots
// are always left empty.
func (s *State) GSA() string {
	return s.pack("GSA",
		"A",
		strconv.Itoa(s.fixType()),
		strings.Repeat(",", 11),
		formatFloat(s.PDOP),
		formatFloat(s.HDOP),
		formatFloat(s.VDOP))
}

// fixType is the GSA 1/2/3 fix dimension.
func (s *State) fixType() int {
	switch {
	case s.FixQuality == 0 || s.Mode == ModeInvalid:
		return 1
	case s.SatellitesUsed >= 3:
		return 3
	default:
		return 2
	}
}

// GSV generates GSV (Satellites in view) sentences, four satellites per
// sentence. Absent slots in the last sentence are left empty.
func (s *State) GSV() []string {
	total := len(s.Satellites)
	count := (total + 3) / 4

	sentences := make([]string, 0, count)
	for n := 1; n <= count; n++ {
		start := (n - 1) * 4
		end := start + 4
		if end > total {
			end = total
		}

		fields := []string{strconv.Itoa(count), strconv.Itoa(n), fmt.Sprintf("%02d", s.SatellitesInView)}
		for _, sat := range s.Satellites[start:end] {
			fields = append(fields, fmt.Sprintf("%02d,%02d,%03d,%02d", sat.ID, sat.Elevation, sat.Azimuth, sat.SNR))
		}
		for i := end - start; i < 4; i++ {
			fields = append(fields, ",,,")
		}
		sentences = append(sentences, s.pack("GSV", fields...))
	}
	return sentences
}

// RMC generates an RMC (Recommended Minimum) sentence
func (s *State) RMC() (string, error) {
	position, err := s.coordinates()
	if err != nil {
		return "", err
	}
	return s.pack("RMC",
		s.nmeaTime(),
		string(s.Mode.Status()),
		position,
		formatFloat(MSToKnots(s.Speed)),
		formatFloat(s.Heading),
		s.FixTime.UTC().Format("020106"),
		"0.0", "E",
		string(s.Mode)), nil
}

// VTG generates a VTG (Track Made Good and Ground Speed) sentence
func (s *State) VTG() string {
	return s.pack("VTG",
		strconv.FormatFloat(s.Heading, 'f', 3, 64), "T",
		"", "M",
		formatFloat(MSToKnots(s.Speed)), "N",
		formatFloat(MSToKMH(s.Speed)), "K")
}

// ZDA generates a ZDA (UTC Date and Time) sentence. Local zone fields are
// left empty.
func (s *State) ZDA() string {
	t := s.FixTime.UTC()
	return s.pack("ZDA",
		s.nmeaTime(),
		fmt.Sprintf("%02d", t.Day()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%04d", t.Year()),
		"", "")
}

// NMEA returns every supported sentence in GGA, GLL, GSA, GSV, RMC, VTG,
// ZDA order. GSV may contribute several sentences or none.
func (s *State) NMEA() ([]string, error) {
	gga, err := s.GGA()
	if err != nil {
		return nil, err
	}
	gll, err := s.GLL()
	if err != nil {
		return nil, err
	}
	rmc, err := s.RMC()
	if err != nil {
		return nil, err
	}

	sentences := []string{gga, gll, s.GSA()}
	sentences = append(sentences, s.GSV()...)
	return append(sentences, rmc, s.VTG(), s.ZDA()), nil
}

package gps

import "time"

var (
	// GPSEpoch is the origin of GPS time.
	GPSEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)
	// UnixEpoch is the reference epoch used for conversion arithmetic.
	UnixEpoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// gpsEpochOffset is the distance between the two epochs.
var gpsEpochOffset = GPSEpoch.Sub(UnixEpoch)

// leapSeconds lists the UTC instants at which a leap second was inserted
// after the GPS epoch. The table is static; new IERS announcements need a
// release.
var leapSeconds = []time.Time{
	leap(1981, time.June, 30),
	leap(1982, time.June, 30),
	leap(1983, time.June, 30),
	leap(1985, time.June, 30),
	leap(1987, time.December, 31),
	leap(1989, time.December, 31),
	leap(1990, time.December, 31),
	leap(1992, time.June, 30),
	leap(1993, time.June, 30),
	leap(1994, time.June, 30),
	leap(1995, time.December, 31),
	leap(1997, time.June, 30),
	leap(1998, time.December, 31),
	leap(2005, time.December, 31),
	leap(2008, time.December, 31),
	leap(2012, time.June, 30),
	leap(2015, time.June, 30),
	leap(2016, time.December, 31),
}

func leap(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 23, 59, 59, 0, time.UTC)
}

// LeapSecondsBefore counts table entries strictly preceding t.
func LeapSecondsBefore(t time.Time) int {
	n := 0
	for _, l := range leapSeconds {
		if t.After(l) {
			n++
		}
	}
	return n
}

// UTCToGPS shifts a UTC instant onto the GPS time scale. The result is
// expressed relative to the Unix epoch, so GPSEpoch maps to the zero
// Unix instant.
func UTCToGPS(utc time.Time) time.Time {
	utc = utc.UTC()
	gps := utc.Add(time.Duration(LeapSecondsBefore(utc)) * time.Second)
	return gps.Add(-gpsEpochOffset)
}

// GPSToUTC is the inverse of UTCToGPS. The leap second count is taken
// against the converted result.
func GPSToUTC(gps time.Time) time.Time {
	utc := gps.UTC().Add(gpsEpochOffset)
	return utc.Add(-time.Duration(LeapSecondsBefore(utc)) * time.Second)
}

// GPSTimeOfDay returns whole seconds since the midnight preceding t on
// t's own calendar date.
func GPSTimeOfDay(t time.Time) int {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return int(t.Sub(midnight) / time.Second)
}

package arbiter

import "github.com/porcej/njord/gps"

// DeriveSource maps a fix quality indicator and satellite count to the
// TAIP source code. Three or more satellites make a 3D fix.
func DeriveSource(quality, satellites int) gps.Source {
	var source gps.Source
	switch {
	case quality == 1:
		source = gps.SourceGPS2D
	case quality > 1 && quality < 6:
		source = gps.SourceDGPS2D
	case quality == 6:
		return gps.SourceDR
	default:
		return gps.SourceUnknown
	}
	if satellites >= 3 {
		source++
	}
	return source
}

// DeriveMode maps a fix quality indicator to the NMEA mode indicator.
func DeriveMode(quality int) gps.Mode {
	switch {
	case quality == 1:
		return gps.ModeAutonomous
	case quality > 1 && quality < 6:
		return gps.ModeDifferential
	case quality == 6:
		return gps.ModeEstimated
	}
	return gps.ModeInvalid
}

package telemetry

import "fmt"

// Field keys published by the AirLink OS database.
const (
	KeyFixTime   = "location.gnss.fixtime"
	KeyLatitude  = "location.gnss.latitude"
	KeyLongitude = "location.gnss.longitude"
	KeyAltitude  = "location.gnss.altitude"
	KeyHeading   = "location.gnss.heading"
	KeySpeed     = "location.gnss.speed"
	KeyHDOP      = "location.gnss.hdop"
	KeyQuality   = "location.gnss.qi"
	KeySatCount  = "location.gnss.satcount"
	KeyTAIPID    = "location.gnss.taipid"
	KeyIgnition  = "vehicle.can.ignitionstatus"
)

// Query groups accepted by the db/get endpoint.
const (
	GroupGNSS     = "location.gnss"
	GroupWiFi     = "net.wifi.ssid"
	GroupIgnition = KeyIgnition
)

// DefaultFields is what one polling cycle requests.
var DefaultFields = []string{GroupWiFi, GroupGNSS, GroupIgnition}

// WiFi scan bands.
const (
	Band2400 = "band2400"
	Band5400 = "band5400"
)

// Bands lists every band in lookup order.
var Bands = []string{Band2400, Band5400}

// WifiScanKey names the scan result text for ssid on band.
func WifiScanKey(ssid, band string) string {
	return fmt.Sprintf("net.wifi.ssid.scan[%s].%s", ssid, band)
}

package gps

// Speed conversion factors from meters per second.
const (
	msToKnots = 1.94384
	msToMPH   = 2.2369362920544
	msToKMH   = 3.6
)

func MSToKnots(ms float64) float64    { return ms * msToKnots }
func KnotsToMS(knots float64) float64 { return knots / msToKnots }
func MSToMPH(ms float64) float64      { return ms * msToMPH }
func MPHToMS(mph float64) float64     { return mph / msToMPH }
func MSToKMH(ms float64) float64      { return ms * msToKMH }
func KMHToMS(kmh float64) float64     { return kmh / msToKMH }

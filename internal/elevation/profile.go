package elevation

import "math"

const earthRadiusKm = 6371

// ProfilePoint is one sample of an elevation profile along the itinerary.
type ProfilePoint struct {
	DistanceKm float64  `json:"distanceKm"`
	Elevation  *float64 `json:"elevation"`
}

// BuildProfile returns cumulative haversine distance against elevation for
// every record of the report. Failed points keep a nil elevation; no values
// are interpolated.
func BuildProfile(report ElevationReport) []ProfilePoint {
	profile := make([]ProfilePoint, len(report.Records))
	var total float64
	for i, r := range report.Records {
		if i > 0 {
			prev := report.Records[i-1]
			total += haversineKm(prev.Latitude, prev.Longitude, r.Latitude, r.Longitude)
		}
		profile[i] = ProfilePoint{DistanceKm: total, Elevation: r.Elevation}
	}
	return profile
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

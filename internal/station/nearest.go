package station

import (
	"math"
	"sort"
)

// earthRadiusMeters is the mean radius of a spherical Earth.
const earthRadiusMeters = 6371000

// Distance returns the haversine great-circle distance in meters between two
// points given in decimal degrees. It is symmetric in its two arguments.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Nearest returns up to n operationally usable stations (installed and
// renting) ordered by ascending distance from the query point. The sort is
// stable, so stations at equal distance keep their directory order.
func Nearest(lat, lon float64, directory []Record, n int) []Record {
	usable := make([]Record, 0, len(directory))
	for _, sta := range directory {
		if sta.Installed && sta.Renting {
			usable = append(usable, sta)
		}
	}

	sort.SliceStable(usable, func(i, j int) bool {
		di := Distance(lat, lon, usable[i].Lat, usable[i].Lon)
		dj := Distance(lat, lon, usable[j].Lat, usable[j].Lon)
		return di < dj
	})

	if n < len(usable) {
		usable = usable[:n]
	}
	return usable
}

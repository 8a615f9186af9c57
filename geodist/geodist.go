package geodist

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusKm = 6371

// Haversine returns the great-circle distance between two points in
// kilometers. Points are [longitude, latitude] in decimal degrees.
func Haversine(a, b orb.Point) float64 {
	lat1 := a[1] * math.Pi / 180
	lat2 := b[1] * math.Pi / 180
	dLat := (b[1] - a[1]) * math.Pi / 180
	dLon := (b[0] - a[0]) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Valid reports whether p is a plausible WGS84 coordinate.
func Valid(p orb.Point) bool {
	return p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90
}

// Bounds is a lon/lat bounding box.
type Bounds struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

var (
	Germany           = Bounds{MinLon: 5.87, MinLat: 47.27, MaxLon: 15.04, MaxLat: 55.06}
	BadenWuerttemberg = Bounds{MinLon: 7.51, MinLat: 47.53, MaxLon: 10.50, MaxLat: 49.79}
)

func (b Bounds) Contains(p orb.Point) bool {
	return p[0] >= b.MinLon && p[0] <= b.MaxLon && p[1] >= b.MinLat && p[1] <= b.MaxLat
}

// String renders the box in the minLon,minLat,maxLon,maxLat form used by
// geocoding provider query parameters.
func (b Bounds) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

package routing

import (
	"math"

	"github.com/paulmach/orb"
)

// DecodePolyline decodes a Google encoded polyline into [lon, lat]
// points. precision is the number of decimal places the coordinates were
// encoded with: OSRM polylines use 5, Valhalla shapes use 6.
func DecodePolyline(encoded string, precision int) orb.LineString {
	factor := math.Pow10(precision)
	line := orb.LineString{}

	var lat, lon int64
	i := 0
	for i < len(encoded) {
		dlat, next, ok := decodeDelta(encoded, i)
		if !ok {
			break
		}
		lat += dlat

		dlon, next2, ok := decodeDelta(encoded, next)
		if !ok {
			break
		}
		lon += dlon
		i = next2

		line = append(line, orb.Point{float64(lon) / factor, float64(lat) / factor})
	}
	return line
}

func decodeDelta(encoded string, i int) (delta int64, next int, ok bool) {
	var result int64
	var shift uint
	for {
		if i >= len(encoded) {
			return 0, i, false
		}
		b := int64(encoded[i]) - 63
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 == 1 {
		return ^(result >> 1), i, true
	}
	return result >> 1, i, true
}

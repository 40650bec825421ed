package geo

import (
	"errors"
	"math"
	"time"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// EarthRadiusM is the mean earth radius used for all great-circle distances.
const EarthRadiusM = 6371000.0

type Position struct {
	Lat        float64   `json:"lat" validate:"latitude"`
	Lng        float64   `json:"lng" validate:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}

// Valid reports whether p holds finite, in-range coordinates.
func (p Position) Valid() bool {
	return ValidCoordinates(p.Lat, p.Lng)
}

func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// HaversineM returns the great-circle distance in meters.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLng := deg2rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineM(lat1, lng1, lat2, lng2) / 1000
}

// Distance is HaversineM between two positions.
func Distance(a, b Position) float64 {
	return HaversineM(a.Lat, a.Lng, b.Lat, b.Lng)
}

// PathLengthM sums segment lengths over consecutive points. Segments touching
// an invalid point are skipped.
func PathLengthM(path []Position) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		if !path[i-1].Valid() || !path[i].Valid() {
			continue
		}
		total += Distance(path[i-1], path[i])
	}
	return total
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}

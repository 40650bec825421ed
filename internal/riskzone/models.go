package riskzone

import "errors"

// DefaultRadiusM applies to zones stored without a usable radius.
const DefaultRadiusM = 50.0

var ErrInvalidZone = errors.New("invalid risk zone")

// RiskZone is a circular hazard area. Zones are immutable for the lifetime of
// a companion session.
type RiskZone struct {
	ID       string  `json:"id"`
	Lat      float64 `json:"latitude" validate:"latitude"`
	Lng      float64 `json:"longitude" validate:"longitude"`
	RadiusM  float64 `json:"radius" validate:"gte=0"`
	Category string  `json:"type" validate:"required"`
	Message  string  `json:"message"`
}

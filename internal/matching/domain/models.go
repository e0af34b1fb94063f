package domain

import (
	driverdomain "freightflow/internal/driver/domain"
)

// DriverScore is the outcome of scoring one candidate against a shipment.
// Reasoning collects one human-readable line per applied rule.
type DriverScore struct {
	DriverID   string              `json:"driver_id"`
	Driver     driverdomain.Driver `json:"driver"`
	Score      int                 `json:"score"`
	DistanceKm float64             `json:"distance_km"`
	Reasoning  []string            `json:"reasoning"`
}

package domain

import (
	"time"

	"freightflow/internal/geo"
)

const (
	CarrierStatusUnverified = "unverified"
	CarrierStatusActive     = "active"
	CarrierStatusRevoked    = "revoked"
)

// Driver is the operational profile used by matching and POD checks.
// Rating is derived from reviews elsewhere; this core only reads it.
type Driver struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	FullName        string     `json:"full_name"`
	Rating          float64    `json:"rating"`
	TotalDeliveries int        `json:"total_deliveries"`
	Location        *geo.Point `json:"location,omitempty"`
	TruckType       string     `json:"truck_type,omitempty"`
	TruckCapacity   *float64   `json:"truck_capacity,omitempty"`
	IsAvailable     bool       `json:"is_available"`
	MCNumber        string     `json:"mc_number,omitempty"`
	DOTNumber       string     `json:"dot_number,omitempty"`
	CarrierStatus   string     `json:"carrier_status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

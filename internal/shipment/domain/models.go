package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"freightflow/internal/geo"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusAssigned  Status = "assigned"
	StatusEnRoute   Status = "en_route"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
)

// The lifecycle is a strict chain; no status is skip-reachable.
var nextStatus = map[Status]Status{
	StatusCreated:   StatusAssigned,
	StatusAssigned:  StatusEnRoute,
	StatusEnRoute:   StatusPickedUp,
	StatusPickedUp:  StatusInTransit,
	StatusInTransit: StatusDelivered,
	StatusDelivered: StatusCompleted,
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	if st == StatusCreated {
		return st, true
	}
	for _, next := range nextStatus {
		if st == next {
			return st, true
		}
	}
	return "", false
}

func (s Status) CanTransitionTo(next Status) bool {
	return nextStatus[s] == next
}

func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// InDelivery reports whether a POD submission makes sense for this status.
func (s Status) InDelivery() bool {
	switch s {
	case StatusEnRoute, StatusPickedUp, StatusInTransit:
		return true
	}
	return false
}

const (
	RoleShipper = "shipper"
	RoleDriver  = "driver"
	RoleAdmin   = "admin"
)

// AssignmentInfo captures why a driver was matched, recorded at assignment
// time for later audit.
type AssignmentInfo struct {
	Score      int      `json:"score"`
	Reasoning  []string `json:"reasoning"`
	DistanceKm float64  `json:"distance_km"`
}

type Shipment struct {
	ID                string           `json:"id"`
	LoadNumber        string           `json:"load_number"`
	ShipperID         string           `json:"shipper_id"`
	DriverID          *string          `json:"driver_id,omitempty"`
	PickupAddress     string           `json:"pickup_address"`
	Pickup            geo.Point        `json:"pickup"`
	DropoffAddress    string           `json:"dropoff_address"`
	Dropoff           geo.Point        `json:"dropoff"`
	Price             decimal.Decimal  `json:"price"`
	PlatformFee       *decimal.Decimal `json:"platform_fee,omitempty"`
	DriverPayout      *decimal.Decimal `json:"driver_payout,omitempty"`
	CargoWeight       *float64         `json:"cargo_weight,omitempty"`
	CargoType         string           `json:"cargo_type,omitempty"`
	Status            Status           `json:"status"`
	Assignment        *AssignmentInfo  `json:"assignment,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	EstimatedDelivery *time.Time       `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time       `json:"actual_delivery,omitempty"`
}

type CreateShipmentInput struct {
	PickupAddress  string          `json:"pickup_address"`
	Pickup         geo.Point       `json:"pickup"`
	DropoffAddress string          `json:"dropoff_address"`
	Dropoff        geo.Point       `json:"dropoff"`
	Price          decimal.Decimal `json:"price"`
	CargoWeight    *float64        `json:"cargo_weight,omitempty"`
	CargoType      string          `json:"cargo_type,omitempty"`
}

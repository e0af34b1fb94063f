package domain

import (
	"context"

	driverdomain "freightflow/internal/driver/domain"
	shipmentdomain "freightflow/internal/shipment/domain"
)

type ShipmentSource interface {
	GetByID(ctx context.Context, id string) (*shipmentdomain.Shipment, error)
}

type DriverSource interface {
	ListAvailableWithLocation(ctx context.Context) ([]driverdomain.Driver, error)
	SetAvailability(ctx context.Context, driverID string, available bool) error
}

// Assigner is the slice of the shipment state machine the engine drives.
type Assigner interface {
	Assign(ctx context.Context, shipmentID, driverID string, meta *shipmentdomain.AssignmentInfo) (*shipmentdomain.Shipment, error)
}

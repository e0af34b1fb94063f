package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository is the single writer of shipment rows. Status changes go
// through conditional updates guarded on the expected current status.
type Repository interface {
	Create(ctx context.Context, s *Shipment) error
	GetByID(ctx context.Context, id string) (*Shipment, error)

	// AssignDriver succeeds only while the shipment is still created and
	// unassigned; a lost race reports zero rows updated.
	AssignDriver(ctx context.Context, shipmentID, driverID string, meta *AssignmentInfo) (bool, error)

	// UpdateStatus is a compare-and-set from the expected status. The
	// delivered transition also stamps actual_delivery.
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)

	// SetSettlement records platformFee/driverPayout exactly once.
	SetSettlement(ctx context.Context, id string, fee, payout decimal.Decimal) error

	ListByShipper(ctx context.Context, shipperID string) ([]Shipment, error)
	ListByDriver(ctx context.Context, driverID string) ([]Shipment, error)
	ListAll(ctx context.Context) ([]Shipment, error)
	ListAvailable(ctx context.Context) ([]Shipment, error)
}

// Ledger settles money when a shipment completes. Implemented by the wallet
// service.
type Ledger interface {
	SettleShipmentPayment(ctx context.Context, shipmentID, loadNumber, shipperUserID, driverUserID string, price decimal.Decimal) (platformFee, driverPayout decimal.Decimal, err error)
}

// DriverDirectory is the slice of the driver component the state machine
// needs: existence checks, wallet-owner resolution and release on completion.
type DriverDirectory interface {
	UserIDForDriver(ctx context.Context, driverID string) (string, error)
	SetAvailability(ctx context.Context, driverID string, available bool) error
	IncrementDeliveries(ctx context.Context, driverID string) error
	DriverIDForUser(ctx context.Context, userID string) (string, error)
}

// Notifier delivers fire-and-forget user notifications; failures never roll
// back a transition.
type Notifier interface {
	Notify(ctx context.Context, userID, eventType string, payload map[string]interface{})
}

package domain

import (
	"context"

	"freightflow/internal/geo"
)

type Repository interface {
	GetByID(ctx context.Context, driverID string) (*Driver, error)
	GetByUserID(ctx context.Context, userID string) (*Driver, error)

	// ListAvailableWithLocation returns every driver eligible for matching:
	// available and with a known current location.
	ListAvailableWithLocation(ctx context.Context) ([]Driver, error)

	SetAvailability(ctx context.Context, driverID string, available bool) error
	UpdateLocation(ctx context.Context, driverID string, loc geo.Point) error
	IncrementDeliveries(ctx context.Context, driverID string) error
}

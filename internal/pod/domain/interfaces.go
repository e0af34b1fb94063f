package domain

import (
	"context"

	shipmentdomain "freightflow/internal/shipment/domain"
)

// Repository is the single writer of pod_event rows.
type Repository interface {
	Create(ctx context.Context, event *PodEvent) error
	GetByID(ctx context.Context, id string) (*PodEvent, error)
	SetApproval(ctx context.Context, id string, approved bool, reason string) (*PodEvent, error)
	ListSuspicious(ctx context.Context, minScore int) ([]PodEvent, error)
	ListByShipment(ctx context.Context, shipmentID string) ([]PodEvent, error)
}

// VisionClient calls the external vision-analysis collaborator. It may fail
// or time out; callers fall back conservatively.
type VisionClient interface {
	Analyze(ctx context.Context, imageURL string) (*VisionResult, error)
}

// ShipmentGateway is the slice of the shipment state machine the verifier
// drives: reading the load under verification and advancing it on approval.
type ShipmentGateway interface {
	Get(ctx context.Context, shipmentID string) (*shipmentdomain.Shipment, error)
	MarkDelivered(ctx context.Context, shipmentID string) error
}

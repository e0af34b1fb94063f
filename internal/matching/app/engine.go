package app

import (
	"context"
	"fmt"
	"sort"

	"freightflow/internal/matching/domain"
	"freightflow/internal/shared/util"
	shipmentdomain "freightflow/internal/shipment/domain"
)

// Engine scores available drivers against open shipments and optionally
// auto-assigns the best candidate.
type Engine struct {
	shipments domain.ShipmentSource
	drivers   domain.DriverSource
	assigner  domain.Assigner
	logger    *util.Logger
	weights   Weights
}

func NewEngine(shipments domain.ShipmentSource, drivers domain.DriverSource, assigner domain.Assigner, logger *util.Logger, weights Weights) *Engine {
	return &Engine{
		shipments: shipments,
		drivers:   drivers,
		assigner:  assigner,
		logger:    logger,
		weights:   weights,
	}
}

// FindBestMatch scores every available located driver and returns the top
// scorer, or nil when no driver is eligible. The sort is stable so equal
// scores keep candidate-list order, which keeps ranking deterministic.
func (e *Engine) FindBestMatch(ctx context.Context, shipmentID string) (*domain.DriverScore, error) {
	instance := "Engine.FindBestMatch"

	shipment, err := e.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.drivers.ListAvailableWithLocation(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		e.logger.Info(instance, fmt.Sprintf("no eligible drivers for shipment %s", shipmentID))
		return nil, nil
	}

	scored := make([]domain.DriverScore, 0, len(candidates))
	for _, d := range candidates {
		scored = append(scored, ScoreDriver(e.weights, d, shipment))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	best := scored[0]
	e.logger.Info(instance, fmt.Sprintf("best candidate for shipment %s: driver %s score=%d distance=%.1fkm",
		shipmentID, best.DriverID, best.Score, best.DistanceKm))
	return &best, nil
}

// AutoAssign assigns the best candidate when their score clears the
// threshold. Returns whether an assignment happened.
func (e *Engine) AutoAssign(ctx context.Context, shipmentID string) (bool, error) {
	instance := "Engine.AutoAssign"

	best, err := e.FindBestMatch(ctx, shipmentID)
	if err != nil {
		return false, err
	}
	if best == nil || best.Score < e.weights.AutoAssignThreshold {
		if best != nil {
			e.logger.Info(instance, fmt.Sprintf("best score %d below threshold %d for shipment %s, not assigning",
				best.Score, e.weights.AutoAssignThreshold, shipmentID))
		}
		return false, nil
	}

	meta := &shipmentdomain.AssignmentInfo{
		Score:      best.Score,
		Reasoning:  best.Reasoning,
		DistanceKm: best.DistanceKm,
	}

	if _, err := e.assigner.Assign(ctx, shipmentID, best.DriverID, meta); err != nil {
		e.logger.Warn(instance, fmt.Sprintf("assignment of driver %s to shipment %s failed: %v", best.DriverID, shipmentID, err))
		return false, err
	}

	// Auto-assigned drivers are held off the candidate pool until the load
	// completes.
	if err := e.drivers.SetAvailability(ctx, best.DriverID, false); err != nil {
		e.logger.Warn(instance, fmt.Sprintf("failed to mark driver %s unavailable: %v", best.DriverID, err))
	}

	e.logger.OK(instance, fmt.Sprintf("auto-assigned driver %s to shipment %s (score=%d)", best.DriverID, shipmentID, best.Score))
	return true, nil
}

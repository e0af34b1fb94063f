package app

import (
	"fmt"

	driverdomain "freightflow/internal/driver/domain"
	"freightflow/internal/geo"
	"freightflow/internal/matching/domain"
	shipmentdomain "freightflow/internal/shipment/domain"
)

// Weights defines the acceptance policy of the matching engine. These are
// tunable configuration, not constants baked into the scoring code.
type Weights struct {
	BaseScore int

	CloseDistanceKm    float64
	ModerateDistanceKm float64
	CloseBonus         int
	ModerateBonus      int
	FarPenalty         int

	ExcellentRating      float64
	GoodRating           float64
	ExcellentRatingBonus int
	GoodRatingBonus      int

	VeteranDeliveries     int
	ExperiencedDeliveries int
	VeteranBonus          int
	ExperiencedBonus      int

	CapacityBonus   int
	CapacityPenalty int

	AutoAssignThreshold int
}

func DefaultWeights() Weights {
	return Weights{
		BaseScore: 100,

		CloseDistanceKm:    50,
		ModerateDistanceKm: 100,
		CloseBonus:         50,
		ModerateBonus:      30,
		FarPenalty:         10,

		ExcellentRating:      4.5,
		GoodRating:           4.0,
		ExcellentRatingBonus: 30,
		GoodRatingBonus:      15,

		VeteranDeliveries:     100,
		ExperiencedDeliveries: 50,
		VeteranBonus:          20,
		ExperiencedBonus:      10,

		CapacityBonus:   15,
		CapacityPenalty: 50,

		AutoAssignThreshold: 80,
	}
}

// ScoreDriver rates one candidate against a shipment. Deterministic: the
// same driver and shipment always produce the same score and reasoning.
func ScoreDriver(w Weights, driver driverdomain.Driver, shipment *shipmentdomain.Shipment) domain.DriverScore {
	result := domain.DriverScore{
		DriverID:  driver.ID,
		Driver:    driver,
		Score:     w.BaseScore,
		Reasoning: []string{},
	}

	if driver.Location != nil {
		result.DistanceKm = geo.Distance(*driver.Location, shipment.Pickup)
	}

	switch {
	case result.DistanceKm <= w.CloseDistanceKm:
		result.Score += w.CloseBonus
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("Very close to pickup (%.1f km)", result.DistanceKm))
	case result.DistanceKm <= w.ModerateDistanceKm:
		result.Score += w.ModerateBonus
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("Moderate distance to pickup (%.1f km)", result.DistanceKm))
	default:
		result.Score -= w.FarPenalty
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("Far from pickup (%.1f km)", result.DistanceKm))
	}

	switch {
	case driver.Rating >= w.ExcellentRating:
		result.Score += w.ExcellentRatingBonus
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("Excellent rating (%.1f)", driver.Rating))
	case driver.Rating >= w.GoodRating:
		result.Score += w.GoodRatingBonus
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("Good rating (%.1f)", driver.Rating))
	}

	switch {
	case driver.TotalDeliveries > w.VeteranDeliveries:
		result.Score += w.VeteranBonus
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("Highly experienced (%d deliveries)", driver.TotalDeliveries))
	case driver.TotalDeliveries > w.ExperiencedDeliveries:
		result.Score += w.ExperiencedBonus
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("Experienced (%d deliveries)", driver.TotalDeliveries))
	}

	if shipment.CargoWeight != nil && driver.TruckCapacity != nil {
		if *driver.TruckCapacity >= *shipment.CargoWeight {
			result.Score += w.CapacityBonus
			result.Reasoning = append(result.Reasoning, "Truck capacity sufficient for cargo")
		} else {
			result.Score -= w.CapacityPenalty
			result.Reasoning = append(result.Reasoning, "Truck capacity insufficient")
		}
	}

	return result
}

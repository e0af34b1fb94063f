package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"freightflow/internal/geo"
	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shared/util"
	"freightflow/internal/shipment/domain"
)

const estimatedSpeedKmh = 60.0

type ShipmentService struct {
	repo    domain.Repository
	drivers domain.DriverDirectory
	ledger  domain.Ledger
	notify  domain.Notifier
	logger  *util.Logger
}

func NewShipmentService(repo domain.Repository, drivers domain.DriverDirectory, ledger domain.Ledger, notify domain.Notifier, logger *util.Logger) *ShipmentService {
	return &ShipmentService{repo: repo, drivers: drivers, ledger: ledger, notify: notify, logger: logger}
}

func (s *ShipmentService) Create(ctx context.Context, shipperID string, input domain.CreateShipmentInput) (*domain.Shipment, error) {
	instance := "ShipmentService.Create"

	if !util.ValidCoordinates(input.Pickup.Lat, input.Pickup.Lng) ||
		!util.ValidCoordinates(input.Dropoff.Lat, input.Dropoff.Lng) {
		s.logger.Warn(instance, "rejected shipment with out-of-range coordinates")
		return nil, domain.ErrInvalidCoordinates
	}
	if input.Price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("price %s: %w", input.Price, apperrors.ErrInvalidAmount)
	}

	now := time.Now().UTC()
	distanceKm := geo.Distance(input.Pickup, input.Dropoff)
	hours := math.Max(1, math.Ceil(distanceKm/estimatedSpeedKmh))
	estimated := now.Add(time.Duration(hours) * time.Hour)

	shipment := &domain.Shipment{
		ID:                uuid.New().String(),
		LoadNumber:        generateLoadNumber(now),
		ShipperID:         shipperID,
		PickupAddress:     input.PickupAddress,
		Pickup:            input.Pickup,
		DropoffAddress:    input.DropoffAddress,
		Dropoff:           input.Dropoff,
		Price:             input.Price,
		CargoWeight:       input.CargoWeight,
		CargoType:         input.CargoType,
		Status:            domain.StatusCreated,
		CreatedAt:         now,
		EstimatedDelivery: &estimated,
	}

	if err := s.repo.Create(ctx, shipment); err != nil {
		s.logger.Error(instance, err)
		return nil, err
	}

	s.logger.OK(instance, fmt.Sprintf("shipment %s created [load=%s, price=%s, distance=%.1fkm]",
		shipment.ID, shipment.LoadNumber, shipment.Price, distanceKm))
	return shipment, nil
}

func generateLoadNumber(now time.Time) string {
	return fmt.Sprintf("LOAD_%s_%s_%03d",
		now.Format("20060102"),
		now.Format("150405"),
		now.Nanosecond()/1000000%1000,
	)
}

// Assign puts a driver on a still-open shipment. The created-and-unassigned
// guard lives in the repository update, so two concurrent assignments can
// never both win; the loser gets ErrConflict.
func (s *ShipmentService) Assign(ctx context.Context, shipmentID, driverID string, meta *domain.AssignmentInfo) (*domain.Shipment, error) {
	instance := "ShipmentService.Assign"

	shipment, err := s.repo.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.Status != domain.StatusCreated || shipment.DriverID != nil {
		s.logger.Warn(instance, fmt.Sprintf("shipment %s not assignable (status=%s)", shipmentID, shipment.Status))
		return nil, fmt.Errorf("shipment in status %s: %w", shipment.Status, apperrors.ErrInvalidTransition)
	}

	shipperUserID := shipment.ShipperID
	if _, err := s.drivers.UserIDForDriver(ctx, driverID); err != nil {
		return nil, err
	}

	assigned, err := s.repo.AssignDriver(ctx, shipmentID, driverID, meta)
	if err != nil {
		s.logger.Error(instance, err)
		return nil, err
	}
	if !assigned {
		s.logger.Warn(instance, fmt.Sprintf("lost assignment race for shipment %s", shipmentID))
		return nil, fmt.Errorf("shipment %s already taken: %w", shipmentID, apperrors.ErrConflict)
	}

	s.notify.Notify(ctx, shipperUserID, "driver_assigned", map[string]interface{}{
		"shipment_id": shipmentID,
		"driver_id":   driverID,
	})

	s.logger.OK(instance, fmt.Sprintf("driver %s assigned to shipment %s", driverID, shipmentID))
	return s.repo.GetByID(ctx, shipmentID)
}

// UpdateStatus applies one legal step of the lifecycle. Authorization and
// legality are checked before any write; completing a shipment settles the
// ledger, and a failed settlement rolls the status back.
func (s *ShipmentService) UpdateStatus(ctx context.Context, shipmentID, newStatusRaw, actorID, actorRole string) (*domain.Shipment, error) {
	instance := "ShipmentService.UpdateStatus"

	newStatus, ok := domain.ParseStatus(newStatusRaw)
	if !ok || newStatus == domain.StatusCreated || newStatus == domain.StatusAssigned {
		return nil, fmt.Errorf("status %q: %w", newStatusRaw, apperrors.ErrInvalidTransition)
	}

	shipment, err := s.repo.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeTransition(ctx, shipment, actorID, actorRole); err != nil {
		s.logger.Warn(instance, fmt.Sprintf("actor %s (%s) may not update shipment %s", actorID, actorRole, shipmentID))
		return nil, err
	}

	if !shipment.Status.CanTransitionTo(newStatus) {
		s.logger.Warn(instance, fmt.Sprintf("illegal transition %s -> %s for shipment %s", shipment.Status, newStatus, shipmentID))
		return nil, fmt.Errorf("%s -> %s: %w", shipment.Status, newStatus, apperrors.ErrInvalidTransition)
	}

	applied, err := s.repo.UpdateStatus(ctx, shipmentID, shipment.Status, newStatus)
	if err != nil {
		s.logger.Error(instance, err)
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("shipment %s changed concurrently: %w", shipmentID, apperrors.ErrConflict)
	}

	if newStatus == domain.StatusCompleted {
		if err := s.settle(ctx, shipment); err != nil {
			// Roll the status write back so the shipment is never marked
			// completed without payment.
			if _, revertErr := s.repo.UpdateStatus(ctx, shipmentID, domain.StatusCompleted, shipment.Status); revertErr != nil {
				s.logger.Error(instance, fmt.Errorf("revert of shipment %s failed after settlement error: %v (settlement: %w)", shipmentID, revertErr, err))
			}
			return nil, err
		}
	}

	s.notify.Notify(ctx, shipment.ShipperID, "shipment_status_changed", map[string]interface{}{
		"shipment_id": shipmentID,
		"status":      string(newStatus),
	})

	s.logger.OK(instance, fmt.Sprintf("shipment %s moved %s -> %s", shipmentID, shipment.Status, newStatus))
	return s.repo.GetByID(ctx, shipmentID)
}

func (s *ShipmentService) authorizeTransition(ctx context.Context, shipment *domain.Shipment, actorID, actorRole string) error {
	switch actorRole {
	case domain.RoleAdmin:
		return nil
	case domain.RoleDriver:
		if shipment.DriverID == nil {
			return fmt.Errorf("shipment has no driver: %w", apperrors.ErrUnauthorized)
		}
		driverID, err := s.drivers.DriverIDForUser(ctx, actorID)
		if err != nil {
			return fmt.Errorf("actor %s: %w", actorID, apperrors.ErrUnauthorized)
		}
		if driverID != *shipment.DriverID {
			return fmt.Errorf("driver %s is not assigned: %w", driverID, apperrors.ErrUnauthorized)
		}
		return nil
	default:
		// Shippers create and assign; they hold no transition rights.
		return fmt.Errorf("role %s: %w", actorRole, apperrors.ErrUnauthorized)
	}
}

func (s *ShipmentService) settle(ctx context.Context, shipment *domain.Shipment) error {
	instance := "ShipmentService.settle"

	if shipment.DriverID == nil {
		return fmt.Errorf("completed shipment without driver: %w", apperrors.ErrInvalidTransition)
	}

	driverUserID, err := s.drivers.UserIDForDriver(ctx, *shipment.DriverID)
	if err != nil {
		return err
	}

	fee, payout, err := s.ledger.SettleShipmentPayment(ctx,
		shipment.ID, shipment.LoadNumber, shipment.ShipperID, driverUserID, shipment.Price)
	if err != nil {
		return err
	}

	if err := s.repo.SetSettlement(ctx, shipment.ID, fee, payout); err != nil {
		s.logger.Error(instance, err)
		return err
	}

	// Completion releases the driver for new loads.
	if err := s.drivers.SetAvailability(ctx, *shipment.DriverID, true); err != nil {
		s.logger.Warn(instance, fmt.Sprintf("failed to release driver %s: %v", *shipment.DriverID, err))
	}
	if err := s.drivers.IncrementDeliveries(ctx, *shipment.DriverID); err != nil {
		s.logger.Warn(instance, fmt.Sprintf("failed to count delivery for driver %s: %v", *shipment.DriverID, err))
	}

	return nil
}

// MarkDelivered advances a shipment to delivered on behalf of the POD
// pipeline. Already-delivered shipments are a no-op so a reviewer approval
// after auto-approval never re-fires anything.
func (s *ShipmentService) MarkDelivered(ctx context.Context, shipmentID string) error {
	instance := "ShipmentService.MarkDelivered"

	shipment, err := s.repo.GetByID(ctx, shipmentID)
	if err != nil {
		return err
	}

	if shipment.Status == domain.StatusDelivered || shipment.Status == domain.StatusCompleted {
		return nil
	}
	if !shipment.Status.CanTransitionTo(domain.StatusDelivered) {
		return fmt.Errorf("%s -> delivered: %w", shipment.Status, apperrors.ErrInvalidTransition)
	}

	applied, err := s.repo.UpdateStatus(ctx, shipmentID, shipment.Status, domain.StatusDelivered)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("shipment %s changed concurrently: %w", shipmentID, apperrors.ErrConflict)
	}

	s.notify.Notify(ctx, shipment.ShipperID, "shipment_delivered", map[string]interface{}{
		"shipment_id": shipmentID,
	})

	s.logger.OK(instance, fmt.Sprintf("shipment %s delivered", shipmentID))
	return nil
}

func (s *ShipmentService) GetByID(ctx context.Context, shipmentID, actorID, actorRole string) (*domain.Shipment, error) {
	shipment, err := s.repo.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	switch actorRole {
	case domain.RoleAdmin:
	case domain.RoleShipper:
		if shipment.ShipperID != actorID {
			return nil, fmt.Errorf("shipment %s: %w", shipmentID, apperrors.ErrUnauthorized)
		}
	case domain.RoleDriver:
		driverID, err := s.drivers.DriverIDForUser(ctx, actorID)
		if err != nil || shipment.DriverID == nil || *shipment.DriverID != driverID {
			return nil, fmt.Errorf("shipment %s: %w", shipmentID, apperrors.ErrUnauthorized)
		}
	default:
		return nil, fmt.Errorf("role %s: %w", actorRole, apperrors.ErrUnauthorized)
	}

	return shipment, nil
}

func (s *ShipmentService) ListForActor(ctx context.Context, actorID, role string) ([]domain.Shipment, error) {
	switch role {
	case domain.RoleShipper:
		return s.repo.ListByShipper(ctx, actorID)
	case domain.RoleDriver:
		driverID, err := s.drivers.DriverIDForUser(ctx, actorID)
		if err != nil {
			return nil, err
		}
		return s.repo.ListByDriver(ctx, driverID)
	case domain.RoleAdmin:
		return s.repo.ListAll(ctx)
	default:
		return nil, fmt.Errorf("role %s: %w", role, apperrors.ErrUnauthorized)
	}
}

func (s *ShipmentService) ListAvailable(ctx context.Context) ([]domain.Shipment, error) {
	return s.repo.ListAvailable(ctx)
}

package app

import (
	"context"
	"fmt"

	"freightflow/internal/driver/domain"
	"freightflow/internal/geo"
	"freightflow/internal/shared/util"
)

type DriverService struct {
	repo   domain.Repository
	logger *util.Logger
}

func NewDriverService(repo domain.Repository, logger *util.Logger) *DriverService {
	return &DriverService{repo: repo, logger: logger}
}

func (s *DriverService) Get(ctx context.Context, driverID string) (*domain.Driver, error) {
	return s.repo.GetByID(ctx, driverID)
}

func (s *DriverService) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *DriverService) UpdateLocation(ctx context.Context, driverID string, loc geo.Point) error {
	instance := "DriverService.UpdateLocation"

	if !util.ValidCoordinates(loc.Lat, loc.Lng) {
		return fmt.Errorf("lat=%.4f lng=%.4f: %w", loc.Lat, loc.Lng, domain.ErrInvalidCoordinates)
	}

	if err := s.repo.UpdateLocation(ctx, driverID, loc); err != nil {
		s.logger.Error(instance, err)
		return err
	}
	return nil
}

func (s *DriverService) SetAvailability(ctx context.Context, driverID string, available bool) error {
	instance := "DriverService.SetAvailability"

	if err := s.repo.SetAvailability(ctx, driverID, available); err != nil {
		s.logger.Error(instance, err)
		return err
	}
	s.logger.Info(instance, fmt.Sprintf("driver %s availability set to %t", driverID, available))
	return nil
}

// UserIDForDriver satisfies the wallet ledger's DriverDirectory.
func (s *DriverService) UserIDForDriver(ctx context.Context, driverID string) (string, error) {
	d, err := s.repo.GetByID(ctx, driverID)
	if err != nil {
		return "", err
	}
	return d.UserID, nil
}

// DriverIDForUser resolves the driver profile owned by an authenticated user.
func (s *DriverService) DriverIDForUser(ctx context.Context, userID string) (string, error) {
	d, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// IncrementDeliveries bumps the completed-delivery counter after settlement.
func (s *DriverService) IncrementDeliveries(ctx context.Context, driverID string) error {
	return s.repo.IncrementDeliveries(ctx, driverID)
}

package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"freightflow/internal/driver/domain"
	"freightflow/internal/geo"
	"freightflow/internal/shared/apperrors"
)

type DriverRepo struct {
	db *pgxpool.Pool
}

func NewDriverRepo(db *pgxpool.Pool) *DriverRepo {
	return &DriverRepo{db: db}
}

const driverColumns = `id, user_id, full_name, rating, total_deliveries, current_lat, current_lng,
	COALESCE(truck_type, ''), truck_capacity, is_available,
	COALESCE(mc_number, ''), COALESCE(dot_number, ''), carrier_status, created_at, updated_at`

func scanDriver(row pgx.Row) (*domain.Driver, error) {
	var d domain.Driver
	var lat, lng *float64

	err := row.Scan(&d.ID, &d.UserID, &d.FullName, &d.Rating, &d.TotalDeliveries, &lat, &lng,
		&d.TruckType, &d.TruckCapacity, &d.IsAvailable,
		&d.MCNumber, &d.DOTNumber, &d.CarrierStatus, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("driver: %w", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan driver: %w", err)
	}

	if lat != nil && lng != nil {
		d.Location = &geo.Point{Lat: *lat, Lng: *lng}
	}
	return &d, nil
}

func (r *DriverRepo) GetByID(ctx context.Context, driverID string) (*domain.Driver, error) {
	return scanDriver(r.db.QueryRow(ctx,
		`SELECT `+driverColumns+` FROM drivers WHERE id = $1`, driverID))
}

func (r *DriverRepo) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	return scanDriver(r.db.QueryRow(ctx,
		`SELECT `+driverColumns+` FROM drivers WHERE user_id = $1`, userID))
}

func (r *DriverRepo) ListAvailableWithLocation(ctx context.Context) ([]domain.Driver, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE is_available = true
		  AND current_lat IS NOT NULL
		  AND current_lng IS NOT NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query available drivers: %w", err)
	}
	defer rows.Close()

	drivers := []domain.Driver{}
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, *d)
	}
	return drivers, rows.Err()
}

func (r *DriverRepo) SetAvailability(ctx context.Context, driverID string, available bool) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE drivers SET is_available = $1, updated_at = NOW() WHERE id = $2
	`, available, driverID)
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("driver %s: %w", driverID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *DriverRepo) UpdateLocation(ctx context.Context, driverID string, loc geo.Point) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE drivers SET current_lat = $1, current_lng = $2, updated_at = NOW() WHERE id = $3
	`, loc.Lat, loc.Lng, driverID)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("driver %s: %w", driverID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *DriverRepo) IncrementDeliveries(ctx context.Context, driverID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE drivers SET total_deliveries = total_deliveries + 1, updated_at = NOW() WHERE id = $1
	`, driverID)
	if err != nil {
		return fmt.Errorf("increment deliveries: %w", err)
	}
	return nil
}

package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shipment/domain"
)

type ShipmentRepo struct {
	db *pgxpool.Pool
}

func NewShipmentRepo(db *pgxpool.Pool) *ShipmentRepo {
	return &ShipmentRepo{db: db}
}

const shipmentColumns = `id, load_number, shipper_id, driver_id, pickup_address, pickup_lat, pickup_lng,
	dropoff_address, dropoff_lat, dropoff_lng, price::text, platform_fee::text, driver_payout::text,
	cargo_weight, COALESCE(cargo_type, ''), status, assignment_meta, created_at, estimated_delivery, actual_delivery`

func scanShipment(row pgx.Row) (*domain.Shipment, error) {
	var s domain.Shipment
	var price string
	var fee, payout *string
	var status string
	var meta []byte

	err := row.Scan(&s.ID, &s.LoadNumber, &s.ShipperID, &s.DriverID, &s.PickupAddress, &s.Pickup.Lat, &s.Pickup.Lng,
		&s.DropoffAddress, &s.Dropoff.Lat, &s.Dropoff.Lng, &price, &fee, &payout,
		&s.CargoWeight, &s.CargoType, &status, &meta, &s.CreatedAt, &s.EstimatedDelivery, &s.ActualDelivery)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("shipment: %w", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan shipment: %w", err)
	}

	s.Status = domain.Status(status)

	if s.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if fee != nil {
		d, err := decimal.NewFromString(*fee)
		if err != nil {
			return nil, fmt.Errorf("parse platform_fee: %w", err)
		}
		s.PlatformFee = &d
	}
	if payout != nil {
		d, err := decimal.NewFromString(*payout)
		if err != nil {
			return nil, fmt.Errorf("parse driver_payout: %w", err)
		}
		s.DriverPayout = &d
	}
	if len(meta) > 0 {
		var info domain.AssignmentInfo
		if err := json.Unmarshal(meta, &info); err == nil {
			s.Assignment = &info
		}
	}
	return &s, nil
}

func (r *ShipmentRepo) Create(ctx context.Context, s *domain.Shipment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO shipments (id, load_number, shipper_id, pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng, price, cargo_weight, cargo_type,
			status, created_at, estimated_delivery)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14, $15)
	`, s.ID, s.LoadNumber, s.ShipperID, s.PickupAddress, s.Pickup.Lat, s.Pickup.Lng,
		s.DropoffAddress, s.Dropoff.Lat, s.Dropoff.Lng, s.Price, s.CargoWeight, s.CargoType,
		string(s.Status), s.CreatedAt, s.EstimatedDelivery)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

func (r *ShipmentRepo) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	return scanShipment(r.db.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id))
}

// AssignDriver is the single atomic check-and-set for the create->assigned
// transition; concurrent callers cannot both match the guard.
func (r *ShipmentRepo) AssignDriver(ctx context.Context, shipmentID, driverID string, meta *domain.AssignmentInfo) (bool, error) {
	var metaJSON []byte
	if meta != nil {
		var err error
		if metaJSON, err = json.Marshal(meta); err != nil {
			return false, fmt.Errorf("marshal assignment meta: %w", err)
		}
	}

	cmd, err := r.db.Exec(ctx, `
		UPDATE shipments
		SET driver_id = $1,
		    status = 'assigned',
		    assignment_meta = $2,
		    updated_at = NOW()
		WHERE id = $3 AND status = 'created' AND driver_id IS NULL
	`, driverID, metaJSON, shipmentID)
	if err != nil {
		return false, fmt.Errorf("assign driver: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ShipmentRepo) UpdateStatus(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE shipments
		SET status = $1,
		    actual_delivery = CASE WHEN $1 = 'delivered' THEN NOW() ELSE actual_delivery END,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ShipmentRepo) SetSettlement(ctx context.Context, id string, fee, payout decimal.Decimal) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE shipments
		SET platform_fee = $1, driver_payout = $2, updated_at = NOW()
		WHERE id = $3 AND platform_fee IS NULL
	`, fee, payout, id)
	if err != nil {
		return fmt.Errorf("set settlement: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("settlement already recorded for shipment %s: %w", id, apperrors.ErrConflict)
	}
	return nil
}

func (r *ShipmentRepo) ListByShipper(ctx context.Context, shipperID string) ([]domain.Shipment, error) {
	return r.list(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE shipper_id = $1 ORDER BY created_at DESC`, shipperID)
}

func (r *ShipmentRepo) ListByDriver(ctx context.Context, driverID string) ([]domain.Shipment, error) {
	return r.list(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE driver_id = $1 ORDER BY created_at DESC`, driverID)
}

func (r *ShipmentRepo) ListAll(ctx context.Context) ([]domain.Shipment, error) {
	return r.list(ctx, `SELECT `+shipmentColumns+` FROM shipments ORDER BY created_at DESC`)
}

func (r *ShipmentRepo) ListAvailable(ctx context.Context) ([]domain.Shipment, error) {
	return r.list(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE status = 'created' AND driver_id IS NULL ORDER BY created_at DESC`)
}

func (r *ShipmentRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.Shipment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	shipments := []domain.Shipment{}
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, *s)
	}
	return shipments, rows.Err()
}

package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"freightflow/internal/pod/domain"
	"freightflow/internal/shared/apperrors"
)

type PodRepo struct {
	db *pgxpool.Pool
}

func NewPodRepo(db *pgxpool.Pool) *PodRepo {
	return &PodRepo{db: db}
}

const podColumns = `id, shipment_id, driver_id, image_url, gps_lat, gps_lng, device_time,
	fraud_score, fraud_reason, ocr_text, is_approved, created_at`

func scanPodEvent(row pgx.Row) (*domain.PodEvent, error) {
	var e domain.PodEvent
	err := row.Scan(&e.ID, &e.ShipmentID, &e.DriverID, &e.ImageURL, &e.GPS.Lat, &e.GPS.Lng, &e.DeviceTime,
		&e.FraudScore, &e.FraudReason, &e.OCRText, &e.IsApproved, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pod event: %w", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan pod event: %w", err)
	}
	return &e, nil
}

func (r *PodRepo) Create(ctx context.Context, event *domain.PodEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO pod_events (id, shipment_id, driver_id, image_url, gps_lat, gps_lng, device_time,
			fraud_score, fraud_reason, ocr_text, is_approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, event.ID, event.ShipmentID, event.DriverID, event.ImageURL, event.GPS.Lat, event.GPS.Lng, event.DeviceTime,
		event.FraudScore, event.FraudReason, event.OCRText, event.IsApproved, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pod event: %w", err)
	}
	return nil
}

func (r *PodRepo) GetByID(ctx context.Context, id string) (*domain.PodEvent, error) {
	return scanPodEvent(r.db.QueryRow(ctx,
		`SELECT `+podColumns+` FROM pod_events WHERE id = $1`, id))
}

func (r *PodRepo) SetApproval(ctx context.Context, id string, approved bool, reason string) (*domain.PodEvent, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE pod_events SET is_approved = $1, fraud_reason = $2 WHERE id = $3
	`, approved, reason, id)
	if err != nil {
		return nil, fmt.Errorf("update pod approval: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, fmt.Errorf("pod event %s: %w", id, apperrors.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *PodRepo) ListSuspicious(ctx context.Context, minScore int) ([]domain.PodEvent, error) {
	return r.list(ctx, `
		SELECT `+podColumns+`
		FROM pod_events
		WHERE fraud_score >= $1 OR is_approved = false
		ORDER BY fraud_score DESC
	`, minScore)
}

func (r *PodRepo) ListByShipment(ctx context.Context, shipmentID string) ([]domain.PodEvent, error) {
	return r.list(ctx, `
		SELECT `+podColumns+`
		FROM pod_events
		WHERE shipment_id = $1
		ORDER BY created_at DESC
	`, shipmentID)
}

func (r *PodRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.PodEvent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pod events: %w", err)
	}
	defer rows.Close()

	events := []domain.PodEvent{}
	for rows.Next() {
		e, err := scanPodEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

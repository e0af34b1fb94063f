package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"freightflow/internal/geo"
	"freightflow/internal/pod/domain"
	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shared/util"
)

// Policy holds the verification thresholds. Tunable configuration, not
// magic numbers inside the pipeline.
type Policy struct {
	ApprovalThreshold int     // approve only below this fraud score
	GeofenceRadiusKm  float64 // max allowed distance from the dropoff point
	GeofencePenalty   int     // added to the fraud score outside the fence
	FallbackScore     int     // used when vision analysis fails
}

func DefaultPolicy() Policy {
	return Policy{
		ApprovalThreshold: 50,
		GeofenceRadiusKm:  1.0,
		GeofencePenalty:   30,
		FallbackScore:     50,
	}
}

type PodService struct {
	repo      domain.Repository
	vision    domain.VisionClient
	shipments domain.ShipmentGateway
	logger    *util.Logger
	policy    Policy
}

func NewPodService(repo domain.Repository, vision domain.VisionClient, shipments domain.ShipmentGateway, logger *util.Logger, policy Policy) *PodService {
	return &PodService{
		repo:      repo,
		vision:    vision,
		shipments: shipments,
		logger:    logger,
		policy:    policy,
	}
}

// Submit verifies a delivery photo. Vision failures are recovered locally
// with a conservative fallback so the submission still lands; a photo we
// cannot analyze is never auto-approved. An approved POD advances the
// shipment to delivered.
func (s *PodService) Submit(ctx context.Context, input domain.SubmitPodInput) (*domain.PodEvent, error) {
	instance := "PodService.Submit"

	shipment, err := s.shipments.Get(ctx, input.ShipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.DriverID == nil || *shipment.DriverID != input.DriverID {
		s.logger.Warn(instance, fmt.Sprintf("driver %s is not assigned to shipment %s", input.DriverID, input.ShipmentID))
		return nil, fmt.Errorf("driver %s not assigned to shipment: %w", input.DriverID, apperrors.ErrUnauthorized)
	}

	var fraudScore int
	var fraudReason, ocrText string
	geofencePassed := true

	analysis, visionErr := s.vision.Analyze(ctx, input.ImageURL)
	if visionErr != nil {
		s.logger.Warn(instance, fmt.Sprintf("vision analysis failed for shipment %s: %v", input.ShipmentID, visionErr))
		fraudScore = s.policy.FallbackScore
		fraudReason = "AI analysis failed, manual review required"
	} else {
		fraudScore = analysis.FraudScore
		fraudReason = analysis.Reason
		ocrText = analysis.ExtractedText
	}

	distanceKm := geo.Distance(input.GPS, shipment.Dropoff)
	if distanceKm > s.policy.GeofenceRadiusKm {
		fraudScore += s.policy.GeofencePenalty
		fraudReason += fmt.Sprintf(" | GPS location %.2fkm from delivery address", distanceKm)
		geofencePassed = false
	}
	if fraudScore > 100 {
		fraudScore = 100
	}

	approved := visionErr == nil && geofencePassed && fraudScore < s.policy.ApprovalThreshold

	event := &domain.PodEvent{
		ID:          uuid.New().String(),
		ShipmentID:  input.ShipmentID,
		DriverID:    input.DriverID,
		ImageURL:    input.ImageURL,
		GPS:         input.GPS,
		DeviceTime:  input.DeviceTime,
		FraudScore:  fraudScore,
		FraudReason: fraudReason,
		OCRText:     ocrText,
		IsApproved:  approved,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error(instance, err)
		return nil, err
	}

	if approved {
		if err := s.shipments.MarkDelivered(ctx, input.ShipmentID); err != nil {
			// The POD stands; a reviewer or the driver can advance the
			// shipment once its status allows it.
			s.logger.Warn(instance, fmt.Sprintf("approved POD %s but could not advance shipment %s: %v", event.ID, input.ShipmentID, err))
		}
	}

	s.logger.OK(instance, fmt.Sprintf("POD %s recorded for shipment %s [score=%d approved=%t]",
		event.ID, input.ShipmentID, fraudScore, approved))
	return event, nil
}

// ReviewerApprove is the administrative override. It advances the shipment
// when it is still in delivery; settlement is only ever triggered by the
// completed transition, so a late approval never re-settles.
func (s *PodService) ReviewerApprove(ctx context.Context, podEventID string) (*domain.PodEvent, error) {
	instance := "PodService.ReviewerApprove"

	event, err := s.repo.GetByID(ctx, podEventID)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.SetApproval(ctx, podEventID, true, event.FraudReason)
	if err != nil {
		return nil, err
	}

	if err := s.shipments.MarkDelivered(ctx, event.ShipmentID); err != nil {
		if !errors.Is(err, apperrors.ErrInvalidTransition) {
			return nil, err
		}
		s.logger.Warn(instance, fmt.Sprintf("POD %s approved but shipment %s not advanced: %v", podEventID, event.ShipmentID, err))
	}

	s.logger.OK(instance, fmt.Sprintf("POD %s approved by reviewer", podEventID))
	return updated, nil
}

func (s *PodService) ReviewerReject(ctx context.Context, podEventID, reason string) (*domain.PodEvent, error) {
	instance := "PodService.ReviewerReject"

	updated, err := s.repo.SetApproval(ctx, podEventID, false, reason)
	if err != nil {
		return nil, err
	}

	s.logger.Info(instance, fmt.Sprintf("POD %s rejected: %s", podEventID, reason))
	return updated, nil
}

// ListSuspicious is the triage queue for human review.
func (s *PodService) ListSuspicious(ctx context.Context) ([]domain.PodEvent, error) {
	return s.repo.ListSuspicious(ctx, s.policy.ApprovalThreshold)
}

func (s *PodService) ListForShipment(ctx context.Context, shipmentID string) ([]domain.PodEvent, error) {
	return s.repo.ListByShipment(ctx, shipmentID)
}

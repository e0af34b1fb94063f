package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightflow/internal/geo"
	"freightflow/internal/pod/domain"
	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shared/util"
	shipmentdomain "freightflow/internal/shipment/domain"
)

type fakePodRepo struct {
	events map[string]*domain.PodEvent
}

func newFakePodRepo() *fakePodRepo {
	return &fakePodRepo{events: map[string]*domain.PodEvent{}}
}

func (f *fakePodRepo) Create(ctx context.Context, event *domain.PodEvent) error {
	cp := *event
	f.events[event.ID] = &cp
	return nil
}

func (f *fakePodRepo) GetByID(ctx context.Context, id string) (*domain.PodEvent, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("pod event: %w", apperrors.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (f *fakePodRepo) SetApproval(ctx context.Context, id string, approved bool, reason string) (*domain.PodEvent, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("pod event: %w", apperrors.ErrNotFound)
	}
	e.IsApproved = approved
	e.FraudReason = reason
	cp := *e
	return &cp, nil
}

func (f *fakePodRepo) ListSuspicious(ctx context.Context, minScore int) ([]domain.PodEvent, error) {
	var out []domain.PodEvent
	for _, e := range f.events {
		if e.FraudScore >= minScore || !e.IsApproved {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakePodRepo) ListByShipment(ctx context.Context, shipmentID string) ([]domain.PodEvent, error) {
	var out []domain.PodEvent
	for _, e := range f.events {
		if e.ShipmentID == shipmentID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeVision struct {
	result *domain.VisionResult
	err    error
	calls  int
}

func (f *fakeVision) Analyze(ctx context.Context, imageURL string) (*domain.VisionResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeGateway struct {
	shipment     *shipmentdomain.Shipment
	deliverErr   error
	deliveredIDs []string
}

func (f *fakeGateway) Get(ctx context.Context, shipmentID string) (*shipmentdomain.Shipment, error) {
	if f.shipment == nil {
		return nil, fmt.Errorf("shipment: %w", apperrors.ErrNotFound)
	}
	cp := *f.shipment
	return &cp, nil
}

func (f *fakeGateway) MarkDelivered(ctx context.Context, shipmentID string) error {
	if f.deliverErr != nil {
		return f.deliverErr
	}
	f.deliveredIDs = append(f.deliveredIDs, shipmentID)
	return nil
}

var dropoff = geo.Point{Lat: 39.7684, Lng: -86.1581}

func assignedShipment(driverID string) *shipmentdomain.Shipment {
	return &shipmentdomain.Shipment{
		ID:       "ship-1",
		DriverID: &driverID,
		Dropoff:  dropoff,
		Status:   shipmentdomain.StatusInTransit,
	}
}

func submitInput() domain.SubmitPodInput {
	return domain.SubmitPodInput{
		ShipmentID: "ship-1",
		DriverID:   "drv-1",
		ImageURL:   "https://cdn.example.com/pod/1.jpg",
		GPS:        dropoff,
		DeviceTime: time.Now().UTC(),
	}
}

func newTestPodService(vision *fakeVision, gateway *fakeGateway) (*PodService, *fakePodRepo) {
	repo := newFakePodRepo()
	return NewPodService(repo, vision, gateway, util.New(), DefaultPolicy()), repo
}

func TestSubmitApprovedAdvancesShipment(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-1")}
	vision := &fakeVision{result: &domain.VisionResult{FraudScore: 10, Reason: "document matches", ExtractedText: "LOAD_X"}}
	svc, repo := newTestPodService(vision, gateway)

	event, err := svc.Submit(context.Background(), submitInput())
	require.NoError(t, err)

	assert.True(t, event.IsApproved)
	assert.Equal(t, 10, event.FraudScore)
	assert.Equal(t, "LOAD_X", event.OCRText)
	assert.Equal(t, []string{"ship-1"}, gateway.deliveredIDs)
	assert.Contains(t, repo.events, event.ID)
}

func TestSubmitRejectsUnassignedDriver(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-other")}
	vision := &fakeVision{result: &domain.VisionResult{FraudScore: 0}}
	svc, repo := newTestPodService(vision, gateway)

	_, err := svc.Submit(context.Background(), submitInput())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Empty(t, repo.events)
	assert.Zero(t, vision.calls, "vision must not be called for unauthorized submissions")
}

func TestSubmitGeofenceViolation(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-1")}
	vision := &fakeVision{result: &domain.VisionResult{FraudScore: 10, Reason: "document matches"}}
	svc, _ := newTestPodService(vision, gateway)

	input := submitInput()
	input.GPS = geo.Point{Lat: dropoff.Lat + 0.09, Lng: dropoff.Lng} // ~10 km off

	event, err := svc.Submit(context.Background(), input)
	require.NoError(t, err)

	// 10 from vision plus the 30-point geofence penalty: still under the
	// approval threshold, but the failed fence alone blocks approval.
	assert.Equal(t, 40, event.FraudScore)
	assert.False(t, event.IsApproved)
	assert.Contains(t, event.FraudReason, "document matches")
	assert.Contains(t, event.FraudReason, "from delivery address")
	assert.Empty(t, gateway.deliveredIDs)
}

func TestSubmitVisionFailureFallsBack(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-1")}
	vision := &fakeVision{err: fmt.Errorf("timeout: %w", apperrors.ErrExternalService)}
	svc, _ := newTestPodService(vision, gateway)

	event, err := svc.Submit(context.Background(), submitInput())
	require.NoError(t, err, "a vision outage must not reject the submission")

	assert.Equal(t, 50, event.FraudScore)
	assert.Equal(t, "AI analysis failed, manual review required", event.FraudReason)
	assert.False(t, event.IsApproved)
	assert.Empty(t, gateway.deliveredIDs)
}

func TestSubmitScoreClampedAt100(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-1")}
	vision := &fakeVision{result: &domain.VisionResult{FraudScore: 90, Reason: "tampering suspected"}}
	svc, _ := newTestPodService(vision, gateway)

	input := submitInput()
	input.GPS = geo.Point{Lat: dropoff.Lat + 0.09, Lng: dropoff.Lng}

	event, err := svc.Submit(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 100, event.FraudScore)
	assert.False(t, event.IsApproved)
}

func TestSubmitThresholdIsExclusive(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-1")}
	vision := &fakeVision{result: &domain.VisionResult{FraudScore: 50, Reason: "borderline"}}
	svc, _ := newTestPodService(vision, gateway)

	event, err := svc.Submit(context.Background(), submitInput())
	require.NoError(t, err)
	assert.False(t, event.IsApproved, "a score of exactly 50 must not auto-approve")
}

func TestSubmitToleratesDeliveryAdvanceFailure(t *testing.T) {
	gateway := &fakeGateway{
		shipment:   assignedShipment("drv-1"),
		deliverErr: fmt.Errorf("en_route -> delivered: %w", apperrors.ErrInvalidTransition),
	}
	vision := &fakeVision{result: &domain.VisionResult{FraudScore: 5}}
	svc, repo := newTestPodService(vision, gateway)

	event, err := svc.Submit(context.Background(), submitInput())
	require.NoError(t, err)
	assert.True(t, event.IsApproved)
	assert.Contains(t, repo.events, event.ID)
}

func TestReviewerApprove(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-1")}
	vision := &fakeVision{err: fmt.Errorf("down: %w", apperrors.ErrExternalService)}
	svc, _ := newTestPodService(vision, gateway)

	event, err := svc.Submit(context.Background(), submitInput())
	require.NoError(t, err)
	require.False(t, event.IsApproved)

	approved, err := svc.ReviewerApprove(context.Background(), event.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	assert.Equal(t, []string{"ship-1"}, gateway.deliveredIDs)
}

func TestReviewerApproveToleratesLateTransition(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-1")}
	vision := &fakeVision{err: fmt.Errorf("down: %w", apperrors.ErrExternalService)}
	svc, _ := newTestPodService(vision, gateway)

	event, err := svc.Submit(context.Background(), submitInput())
	require.NoError(t, err)

	gateway.deliverErr = fmt.Errorf("delivered -> delivered: %w", apperrors.ErrInvalidTransition)

	approved, err := svc.ReviewerApprove(context.Background(), event.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
}

func TestReviewerReject(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-1")}
	vision := &fakeVision{result: &domain.VisionResult{FraudScore: 60, Reason: "suspect"}}
	svc, _ := newTestPodService(vision, gateway)

	event, err := svc.Submit(context.Background(), submitInput())
	require.NoError(t, err)

	rejected, err := svc.ReviewerReject(context.Background(), event.ID, "photo does not match cargo")
	require.NoError(t, err)
	assert.False(t, rejected.IsApproved)
	assert.Equal(t, "photo does not match cargo", rejected.FraudReason)
	assert.Empty(t, gateway.deliveredIDs)
}

func TestListSuspiciousUsesThreshold(t *testing.T) {
	gateway := &fakeGateway{shipment: assignedShipment("drv-1")}
	vision := &fakeVision{result: &domain.VisionResult{FraudScore: 5, Reason: "clean"}}
	svc, _ := newTestPodService(vision, gateway)

	clean, err := svc.Submit(context.Background(), submitInput())
	require.NoError(t, err)
	require.True(t, clean.IsApproved)

	vision.result = &domain.VisionResult{FraudScore: 75, Reason: "altered document"}
	dirty, err := svc.Submit(context.Background(), submitInput())
	require.NoError(t, err)

	suspicious, err := svc.ListSuspicious(context.Background())
	require.NoError(t, err)
	require.Len(t, suspicious, 1)
	assert.Equal(t, dirty.ID, suspicious[0].ID)
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"freightflow/internal/geo"
	"freightflow/internal/pod/app"
	"freightflow/internal/pod/domain"
	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shared/middleware"
	"freightflow/internal/shared/util"
)

const requestTimeout = 15 * time.Second

const (
	roleDriver = "driver"
	roleAdmin  = "admin"
)

// DriverResolver maps the authenticated user to their driver profile.
type DriverResolver interface {
	DriverIDForUser(ctx context.Context, userID string) (string, error)
}

type Handler struct {
	service *app.PodService
	drivers DriverResolver
	logger  *util.Logger
}

func NewHandler(service *app.PodService, drivers DriverResolver, logger *util.Logger) *Handler {
	return &Handler{service: service, drivers: drivers, logger: logger}
}

type submitRequest struct {
	ShipmentID string    `json:"shipment_id"`
	ImageURL   string    `json:"image_url"`
	GPS        geo.Point `json:"gps"`
	DeviceTime time.Time `json:"device_time"`
}

func (h *Handler) SubmitPodHandler(w http.ResponseWriter, r *http.Request) {
	instance := "SubmitPodHandler"
	start := time.Now()

	userID, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != roleDriver {
		h.logger.Warn(instance, "forbidden: only drivers submit proof of delivery")
		util.WriteJSONError(w, "only drivers can submit proof of delivery", http.StatusForbidden)
		return
	}

	var body submitRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.ShipmentID == "" || body.ImageURL == "" {
		util.WriteJSONError(w, "shipment_id and image_url are required", http.StatusBadRequest)
		return
	}
	if body.DeviceTime.IsZero() {
		body.DeviceTime = time.Now().UTC()
	}

	// The vision call sits inside this request, so the budget is wider than
	// the usual handler timeout.
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	driverID, err := h.drivers.DriverIDForUser(ctx, userID)
	if err != nil {
		h.logger.Warn(instance, "no driver profile for user "+userID)
		util.WriteJSONError(w, "no driver profile for this account", http.StatusForbidden)
		return
	}

	event, err := h.service.Submit(ctx, domain.SubmitPodInput{
		ShipmentID: body.ShipmentID,
		DriverID:   driverID,
		ImageURL:   body.ImageURL,
		GPS:        body.GPS,
		DeviceTime: body.DeviceTime,
	})
	if err != nil {
		h.logger.Warn(instance, err.Error())
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusCreated, event)
	h.logger.HTTP(http.StatusCreated, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) ApprovePodHandler(w http.ResponseWriter, r *http.Request) {
	instance := "ApprovePodHandler"
	start := time.Now()

	if !h.requireAdmin(w, r, instance) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	event, err := h.service.ReviewerApprove(ctx, r.PathValue("id"))
	if err != nil {
		h.logger.Warn(instance, err.Error())
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusOK, event)
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) RejectPodHandler(w http.ResponseWriter, r *http.Request) {
	instance := "RejectPodHandler"
	start := time.Now()

	if !h.requireAdmin(w, r, instance) {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Reason == "" {
		util.WriteJSONError(w, "reason is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	event, err := h.service.ReviewerReject(ctx, r.PathValue("id"), body.Reason)
	if err != nil {
		h.logger.Warn(instance, err.Error())
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusOK, event)
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) ListSuspiciousHandler(w http.ResponseWriter, r *http.Request) {
	instance := "ListSuspiciousHandler"
	start := time.Now()

	if !h.requireAdmin(w, r, instance) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := h.service.ListSuspicious(ctx)
	if err != nil {
		h.logger.Error(instance, err)
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"pod_events": events})
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) ListShipmentPodsHandler(w http.ResponseWriter, r *http.Request) {
	instance := "ListShipmentPodsHandler"
	start := time.Now()

	if _, _, ok := middleware.Actor(r.Context()); !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := h.service.ListForShipment(ctx, r.PathValue("id"))
	if err != nil {
		h.logger.Error(instance, err)
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"pod_events": events})
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, instance string) bool {
	_, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	if role != roleAdmin {
		h.logger.Warn(instance, "forbidden: reviewer actions are admin-only")
		util.WriteJSONError(w, "reviewer actions are admin-only", http.StatusForbidden)
		return false
	}
	return true
}

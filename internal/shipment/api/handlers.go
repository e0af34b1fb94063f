package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	matchingapp "freightflow/internal/matching/app"
	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shared/middleware"
	"freightflow/internal/shared/util"
	"freightflow/internal/shipment/app"
	"freightflow/internal/shipment/domain"
)

const requestTimeout = 5 * time.Second

type Handler struct {
	service *app.ShipmentService
	matcher *matchingapp.Engine
	logger  *util.Logger
}

func NewHandler(service *app.ShipmentService, matcher *matchingapp.Engine, logger *util.Logger) *Handler {
	return &Handler{service: service, matcher: matcher, logger: logger}
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidCoordinates) {
		util.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
}

func (h *Handler) CreateShipmentHandler(w http.ResponseWriter, r *http.Request) {
	instance := "CreateShipmentHandler"
	start := time.Now()

	actorID, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != domain.RoleShipper && role != domain.RoleAdmin {
		h.logger.Warn(instance, "forbidden: only shippers can post loads")
		util.WriteJSONError(w, "only shippers can post loads", http.StatusForbidden)
		return
	}

	var input domain.CreateShipmentInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		h.logger.Error(instance, err)
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.PickupAddress == "" || input.DropoffAddress == "" {
		util.WriteJSONError(w, "missing required fields", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	shipment, err := h.service.Create(ctx, actorID, input)
	if err != nil {
		h.logger.Error(instance, err)
		writeServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, shipment)
	h.logger.HTTP(http.StatusCreated, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) GetShipmentHandler(w http.ResponseWriter, r *http.Request) {
	instance := "GetShipmentHandler"
	start := time.Now()

	actorID, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	shipment, err := h.service.GetByID(ctx, r.PathValue("id"), actorID, role)
	if err != nil {
		h.logger.Warn(instance, err.Error())
		writeServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, shipment)
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) ListShipmentsHandler(w http.ResponseWriter, r *http.Request) {
	instance := "ListShipmentsHandler"
	start := time.Now()

	actorID, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	shipments, err := h.service.ListForActor(ctx, actorID, role)
	if err != nil {
		h.logger.Warn(instance, err.Error())
		writeServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"shipments": shipments})
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) ListAvailableHandler(w http.ResponseWriter, r *http.Request) {
	instance := "ListAvailableHandler"
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	shipments, err := h.service.ListAvailable(ctx)
	if err != nil {
		h.logger.Error(instance, err)
		writeServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"shipments": shipments})
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) AssignDriverHandler(w http.ResponseWriter, r *http.Request) {
	instance := "AssignDriverHandler"
	start := time.Now()

	actorID, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		DriverID string `json:"driver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		util.WriteJSONError(w, "driver_id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	shipmentID := r.PathValue("id")

	// Ownership gate: only the posting shipper or an admin may hand a load
	// to a driver.
	if _, err := h.service.GetByID(ctx, shipmentID, actorID, role); err != nil {
		h.logger.Warn(instance, err.Error())
		writeServiceError(w, err)
		return
	}
	if role != domain.RoleShipper && role != domain.RoleAdmin {
		util.WriteJSONError(w, "only the shipper or an admin can assign drivers", http.StatusForbidden)
		return
	}

	shipment, err := h.service.Assign(ctx, shipmentID, body.DriverID, nil)
	if err != nil {
		h.logger.Warn(instance, err.Error())
		writeServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, shipment)
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

// MatchHandler runs the scoring engine against a shipment. With auto_assign
// the best candidate above the threshold is put on the load directly.
func (h *Handler) MatchHandler(w http.ResponseWriter, r *http.Request) {
	instance := "MatchHandler"
	start := time.Now()

	actorID, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		AutoAssign bool `json:"auto_assign"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	shipmentID := r.PathValue("id")

	if _, err := h.service.GetByID(ctx, shipmentID, actorID, role); err != nil {
		h.logger.Warn(instance, err.Error())
		writeServiceError(w, err)
		return
	}
	if role != domain.RoleShipper && role != domain.RoleAdmin {
		util.WriteJSONError(w, "only the shipper or an admin can run matching", http.StatusForbidden)
		return
	}

	if body.AutoAssign {
		assigned, err := h.matcher.AutoAssign(ctx, shipmentID)
		if err != nil {
			h.logger.Warn(instance, err.Error())
			writeServiceError(w, err)
			return
		}
		util.WriteJSON(w, http.StatusOK, map[string]interface{}{"assigned": assigned})
		h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
		return
	}

	best, err := h.matcher.FindBestMatch(ctx, shipmentID)
	if err != nil {
		h.logger.Warn(instance, err.Error())
		writeServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"best_match": best})
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	instance := "UpdateStatusHandler"
	start := time.Now()

	actorID, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		util.WriteJSONError(w, "status is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	shipment, err := h.service.UpdateStatus(ctx, r.PathValue("id"), body.Status, actorID, role)
	if err != nil {
		h.logger.Warn(instance, err.Error())
		writeServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, shipment)
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

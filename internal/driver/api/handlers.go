package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"freightflow/internal/driver/app"
	"freightflow/internal/driver/domain"
	"freightflow/internal/geo"
	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shared/middleware"
	"freightflow/internal/shared/util"
)

const requestTimeout = 5 * time.Second

type Handler struct {
	service   *app.DriverService
	jwtSecret []byte
	logger    *util.Logger
}

func NewHandler(service *app.DriverService, jwtSecret []byte, logger *util.Logger) *Handler {
	return &Handler{service: service, jwtSecret: jwtSecret, logger: logger}
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidCoordinates) {
		util.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
}

// driverFromActor resolves the authenticated user's driver profile.
func (h *Handler) driverFromActor(ctx context.Context, w http.ResponseWriter, r *http.Request) (*domain.Driver, bool) {
	userID, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	if role != "driver" {
		util.WriteJSONError(w, "driver account required", http.StatusForbidden)
		return nil, false
	}

	driver, err := h.service.GetByUserID(ctx, userID)
	if err != nil {
		util.WriteJSONError(w, "no driver profile for this account", http.StatusForbidden)
		return nil, false
	}
	return driver, true
}

func (h *Handler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	driver, ok := h.driverFromActor(ctx, w, r)
	if !ok {
		return
	}

	util.WriteJSON(w, http.StatusOK, driver)
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) SetAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	instance := "SetAvailabilityHandler"
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	driver, ok := h.driverFromActor(ctx, w, r)
	if !ok {
		return
	}

	var body struct {
		Available *bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Available == nil {
		util.WriteJSONError(w, "available is required", http.StatusBadRequest)
		return
	}

	if err := h.service.SetAvailability(ctx, driver.ID, *body.Available); err != nil {
		h.logger.Warn(instance, err.Error())
		writeServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"driver_id": driver.ID,
		"available": *body.Available,
	})
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
	instance := "UpdateLocationHandler"
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	driver, ok := h.driverFromActor(ctx, w, r)
	if !ok {
		return
	}

	var body geo.Point
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateLocation(ctx, driver.ID, body); err != nil {
		h.logger.Warn(instance, err.Error())
		writeServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

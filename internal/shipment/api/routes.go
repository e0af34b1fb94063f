package api

import "net/http"

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /shipments", h.CreateShipmentHandler)
	mux.HandleFunc("GET /shipments", h.ListShipmentsHandler)
	mux.HandleFunc("GET /shipments/available", h.ListAvailableHandler)
	mux.HandleFunc("GET /shipments/{id}", h.GetShipmentHandler)
	mux.HandleFunc("POST /shipments/{id}/assign", h.AssignDriverHandler)
	mux.HandleFunc("POST /shipments/{id}/match", h.MatchHandler)
	mux.HandleFunc("PATCH /shipments/{id}/status", h.UpdateStatusHandler)
}

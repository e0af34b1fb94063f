package api

import "net/http"

// RegisterRoutes mounts the authenticated driver endpoints. The websocket
// endpoint authenticates in-band and is mounted separately, outside the
// bearer-token middleware.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /drivers/me", h.GetProfileHandler)
	mux.HandleFunc("PATCH /drivers/availability", h.SetAvailabilityHandler)
	mux.HandleFunc("POST /drivers/location", h.UpdateLocationHandler)
}

package api

import "net/http"

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /pod", h.SubmitPodHandler)
	mux.HandleFunc("POST /pod/{id}/approve", h.ApprovePodHandler)
	mux.HandleFunc("POST /pod/{id}/reject", h.RejectPodHandler)
	mux.HandleFunc("GET /pod/suspicious", h.ListSuspiciousHandler)
	mux.HandleFunc("GET /shipments/{id}/pod", h.ListShipmentPodsHandler)
}

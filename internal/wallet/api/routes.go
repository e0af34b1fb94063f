package api

import "net/http"

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /wallet", h.GetWalletHandler)
	mux.HandleFunc("POST /wallet/deposit", h.DepositHandler)
	mux.HandleFunc("POST /wallet/withdraw", h.WithdrawHandler)
	mux.HandleFunc("GET /wallet/transactions", h.ListTransactionsHandler)
	mux.HandleFunc("POST /penalties", h.ApplyPenaltyHandler)
	mux.HandleFunc("GET /penalties/{driverID}", h.ListPenaltiesHandler)
}

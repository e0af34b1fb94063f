package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shared/middleware"
	"freightflow/internal/shared/util"
	"freightflow/internal/wallet/app"
)

const requestTimeout = 5 * time.Second

const roleAdmin = "admin"

type Handler struct {
	service *app.WalletService
	logger  *util.Logger
}

func NewHandler(service *app.WalletService, logger *util.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	instance := "GetWalletHandler"
	start := time.Now()

	userID, _, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	wallet, err := h.service.GetOrCreateWallet(ctx, userID)
	if err != nil {
		h.logger.Error(instance, err)
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusOK, wallet)
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

type amountRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *Handler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	instance := "DepositHandler"
	start := time.Now()

	userID, _, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body amountRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	tx, err := h.service.Credit(ctx, userID, body.Amount, body.Description, "")
	if err != nil {
		h.logger.Warn(instance, err.Error())
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusCreated, tx)
	h.logger.HTTP(http.StatusCreated, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	instance := "WithdrawHandler"
	start := time.Now()

	userID, _, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body amountRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	tx, err := h.service.InitiateWithdrawal(ctx, userID, body.Amount)
	if err != nil {
		h.logger.Warn(instance, err.Error())
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusAccepted, tx)
	h.logger.HTTP(http.StatusAccepted, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	instance := "ListTransactionsHandler"
	start := time.Now()

	userID, _, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	txs, err := h.service.ListTransactions(ctx, userID)
	if err != nil {
		h.logger.Error(instance, err)
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) ApplyPenaltyHandler(w http.ResponseWriter, r *http.Request) {
	instance := "ApplyPenaltyHandler"
	start := time.Now()

	_, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != roleAdmin {
		h.logger.Warn(instance, "forbidden: penalties are admin-only")
		util.WriteJSONError(w, "only admins can apply penalties", http.StatusForbidden)
		return
	}

	var body struct {
		DriverID   string          `json:"driver_id"`
		Amount     decimal.Decimal `json:"amount"`
		Reason     string          `json:"reason"`
		ShipmentID string          `json:"shipment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		util.WriteJSONError(w, "driver_id and amount are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	penalty, err := h.service.ApplyPenalty(ctx, body.DriverID, body.Amount, body.Reason, body.ShipmentID)
	if err != nil {
		h.logger.Warn(instance, err.Error())
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusCreated, penalty)
	h.logger.HTTP(http.StatusCreated, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

func (h *Handler) ListPenaltiesHandler(w http.ResponseWriter, r *http.Request) {
	instance := "ListPenaltiesHandler"
	start := time.Now()

	_, role, ok := middleware.Actor(r.Context())
	if !ok {
		util.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != roleAdmin {
		util.WriteJSONError(w, "only admins can list penalties", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	penalties, err := h.service.ListOutstandingPenalties(ctx, r.PathValue("driverID"))
	if err != nil {
		h.logger.Error(instance, err)
		util.WriteJSONError(w, err.Error(), apperrors.StatusCode(err))
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"penalties": penalties})
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

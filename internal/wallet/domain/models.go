package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TxTypeDeposit    = "deposit"
	TxTypeWithdrawal = "withdrawal"
	TxTypePayment    = "payment"
)

const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
)

// Wallet keeps a denormalized running balance for read efficiency; the
// transaction log remains the source of truth and must always replay to the
// same balance.
type Wallet struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Transaction struct {
	ID          string          `json:"id"`
	WalletID    string          `json:"wallet_id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ReferenceID string          `json:"reference_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

type Penalty struct {
	ID         string          `json:"id"`
	DriverID   string          `json:"driver_id"`
	ShipmentID string          `json:"shipment_id,omitempty"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
	IsActive   bool            `json:"is_active"`
	IsPaid     bool            `json:"is_paid"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

const PenaltyTypePolicyViolation = "policy_violation"

type SettlementResult struct {
	Amount       decimal.Decimal `json:"amount"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	DriverPayout decimal.Decimal `json:"driver_payout"`
}

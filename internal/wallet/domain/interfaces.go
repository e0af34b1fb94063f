package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository is the single writer of wallet, transaction and penalty rows.
// Every mutating method is one atomic unit of work; balance checks happen
// under a row lock inside that unit.
type Repository interface {
	GetOrCreate(ctx context.Context, userID string) (*Wallet, error)

	// ApplyCredit atomically inserts a completed deposit transaction and
	// increments balance and totalEarnings.
	ApplyCredit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (*Transaction, error)

	// ApplyDebit fails with ErrInsufficientFunds when balance < amount;
	// otherwise inserts a completed payment transaction, decrements balance
	// and increments totalSpent.
	ApplyDebit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (*Transaction, error)

	// TransferPayment performs the shipper debit and the driver credit as a
	// single two-wallet unit; both succeed or neither applies.
	TransferPayment(ctx context.Context, debitUserID, creditUserID string,
		debitAmount, creditAmount decimal.Decimal,
		debitDescription, creditDescription, referenceID string) (*Transaction, *Transaction, error)

	// HoldWithdrawal moves amount from balance to pendingBalance and writes
	// a pending withdrawal transaction.
	HoldWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) (*Transaction, error)

	// ListPendingWithdrawals returns pending withdrawal transactions created
	// at least holdFor ago, oldest first.
	ListPendingWithdrawals(ctx context.Context, holdFor time.Duration, limit int) ([]Transaction, error)

	// CompleteWithdrawal settles a pending withdrawal: marks it completed
	// and releases pendingBalance. Returns false when the transaction was
	// already completed, so retries are no-ops.
	CompleteWithdrawal(ctx context.Context, transactionID string) (bool, error)

	ListTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error)

	// ApplyPenalty inserts the penalty and, when the driver's balance covers
	// the amount, debits the wallet and marks the penalty paid in the same
	// unit of work.
	ApplyPenalty(ctx context.Context, penalty *Penalty, driverUserID string) (*Penalty, error)

	ListOutstandingPenalties(ctx context.Context, driverID string) ([]Penalty, error)
}

// DriverDirectory resolves a driver entity to the user whose wallet earns
// payouts and pays penalties.
type DriverDirectory interface {
	UserIDForDriver(ctx context.Context, driverID string) (string, error)
}

// Notifier delivers fire-and-forget user notifications.
type Notifier interface {
	Notify(ctx context.Context, userID, eventType string, payload map[string]interface{})
}

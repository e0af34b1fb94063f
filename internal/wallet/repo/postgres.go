package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"freightflow/internal/shared/apperrors"
	"freightflow/internal/wallet/domain"
)

// WalletRepo is the only writer of wallet, transaction and penalty rows.
// Balances are stored as numeric and moved through pgx transactions with
// SELECT ... FOR UPDATE row locks, so concurrent debits on the same wallet
// serialize and can never lose an update or go negative.
type WalletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepo(db *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{db: db}
}

const walletColumns = `id, user_id, balance::text, pending_balance::text, total_earnings::text, total_spent::text, created_at, updated_at`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	var balance, pending, earnings, spent string

	err := row.Scan(&w.ID, &w.UserID, &balance, &pending, &earnings, &spent, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if w.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if w.PendingBalance, err = decimal.NewFromString(pending); err != nil {
		return nil, fmt.Errorf("parse pending_balance: %w", err)
	}
	if w.TotalEarnings, err = decimal.NewFromString(earnings); err != nil {
		return nil, fmt.Errorf("parse total_earnings: %w", err)
	}
	if w.TotalSpent, err = decimal.NewFromString(spent); err != nil {
		return nil, fmt.Errorf("parse total_spent: %w", err)
	}
	return &w, nil
}

func (r *WalletRepo) GetOrCreate(ctx context.Context, userID string) (*domain.Wallet, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, pending_balance, total_earnings, total_spent)
		VALUES ($1, $2, 0, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New().String(), userID)
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	return scanWallet(r.db.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
}

// lockWallet creates the wallet if missing and returns it locked for the
// remainder of tx.
func lockWallet(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, pending_balance, total_earnings, total_spent)
		VALUES ($1, $2, 0, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New().String(), userID)
	if err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	return scanWallet(tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
}

func insertTransaction(ctx context.Context, tx pgx.Tx, walletID, txType, status string, amount decimal.Decimal, description, referenceID string, completedAt *time.Time) (*domain.Transaction, error) {
	t := &domain.Transaction{
		ID:          uuid.New().String(),
		WalletID:    walletID,
		Type:        txType,
		Status:      status,
		Amount:      amount,
		Description: description,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
		CompletedAt: completedAt,
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, wallet_id, type, status, amount, description, reference_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
	`, t.ID, t.WalletID, t.Type, t.Status, t.Amount, t.Description, t.ReferenceID, t.CreatedAt, t.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func creditLocked(ctx context.Context, tx pgx.Tx, w *domain.Wallet, amount decimal.Decimal, description, referenceID string) (*domain.Transaction, error) {
	now := time.Now().UTC()
	t, err := insertTransaction(ctx, tx, w.ID, domain.TxTypeDeposit, domain.TxStatusCompleted, amount, description, referenceID, &now)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance + $1,
		    total_earnings = total_earnings + $1,
		    updated_at = NOW()
		WHERE id = $2
	`, amount, w.ID)
	if err != nil {
		return nil, fmt.Errorf("apply credit: %w", err)
	}
	return t, nil
}

func debitLocked(ctx context.Context, tx pgx.Tx, w *domain.Wallet, amount decimal.Decimal, description, referenceID string) (*domain.Transaction, error) {
	if w.Balance.LessThan(amount) {
		return nil, fmt.Errorf("balance %s < %s: %w", w.Balance, amount, apperrors.ErrInsufficientFunds)
	}

	now := time.Now().UTC()
	t, err := insertTransaction(ctx, tx, w.ID, domain.TxTypePayment, domain.TxStatusCompleted, amount, description, referenceID, &now)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $1,
		    total_spent = total_spent + $1,
		    updated_at = NOW()
		WHERE id = $2
	`, amount, w.ID)
	if err != nil {
		return nil, fmt.Errorf("apply debit: %w", err)
	}
	return t, nil
}

func (r *WalletRepo) ApplyCredit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	t, err := creditLocked(ctx, tx, w, amount, description, referenceID)
	if err != nil {
		return nil, err
	}

	return t, tx.Commit(ctx)
}

func (r *WalletRepo) ApplyDebit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	t, err := debitLocked(ctx, tx, w, amount, description, referenceID)
	if err != nil {
		return nil, err
	}

	return t, tx.Commit(ctx)
}

func (r *WalletRepo) TransferPayment(ctx context.Context, debitUserID, creditUserID string,
	debitAmount, creditAmount decimal.Decimal,
	debitDescription, creditDescription, referenceID string) (*domain.Transaction, *domain.Transaction, error) {

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	// Lock both wallets in a deterministic order to avoid deadlocks when two
	// settlements touch the same pair concurrently.
	first, second := debitUserID, creditUserID
	if second < first {
		first, second = second, first
	}

	wallets := map[string]*domain.Wallet{}
	for _, id := range []string{first, second} {
		w, err := lockWallet(ctx, tx, id)
		if err != nil {
			return nil, nil, err
		}
		wallets[id] = w
	}

	debitTx, err := debitLocked(ctx, tx, wallets[debitUserID], debitAmount, debitDescription, referenceID)
	if err != nil {
		return nil, nil, err
	}

	creditTx, err := creditLocked(ctx, tx, wallets[creditUserID], creditAmount, creditDescription, referenceID)
	if err != nil {
		return nil, nil, err
	}

	return debitTx, creditTx, tx.Commit(ctx)
}

func (r *WalletRepo) HoldWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if w.Balance.LessThan(amount) {
		return nil, fmt.Errorf("balance %s < %s: %w", w.Balance, amount, apperrors.ErrInsufficientFunds)
	}

	t, err := insertTransaction(ctx, tx, w.ID, domain.TxTypeWithdrawal, domain.TxStatusPending, amount, "Withdrawal request", "", nil)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $1,
		    pending_balance = pending_balance + $1,
		    updated_at = NOW()
		WHERE id = $2
	`, amount, w.ID)
	if err != nil {
		return nil, fmt.Errorf("hold withdrawal: %w", err)
	}

	return t, tx.Commit(ctx)
}

func (r *WalletRepo) ListPendingWithdrawals(ctx context.Context, holdFor time.Duration, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, wallet_id, type, status, amount::text, description, COALESCE(reference_id, ''), created_at, completed_at
		FROM transactions
		WHERE type = 'withdrawal' AND status = 'pending' AND created_at <= NOW() - $1::interval
		ORDER BY created_at ASC
		LIMIT $2
	`, fmt.Sprintf("%d seconds", int(holdFor.Seconds())), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending withdrawals: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// CompleteWithdrawal is idempotent: the status guard makes a retried or
// duplicated settlement a no-op.
func (r *WalletRepo) CompleteWithdrawal(ctx context.Context, transactionID string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var walletID, amountStr string
	err = tx.QueryRow(ctx, `
		UPDATE transactions
		SET status = 'completed', completed_at = NOW()
		WHERE id = $1 AND type = 'withdrawal' AND status = 'pending'
		RETURNING wallet_id, amount::text
	`, transactionID).Scan(&walletID, &amountStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("complete withdrawal: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET pending_balance = pending_balance - $1::numeric,
		    updated_at = NOW()
		WHERE id = $2
	`, amountStr, walletID)
	if err != nil {
		return false, fmt.Errorf("release pending balance: %w", err)
	}

	return true, tx.Commit(ctx)
}

func (r *WalletRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.wallet_id, t.type, t.status, t.amount::text, t.description, COALESCE(t.reference_id, ''), t.created_at, t.completed_at
		FROM transactions t
		JOIN wallets w ON w.id = t.wallet_id
		WHERE w.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		var amount string
		err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Status, &amount, &t.Description, &t.ReferenceID, &t.CreatedAt, &t.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *WalletRepo) ApplyPenalty(ctx context.Context, penalty *domain.Penalty, driverUserID string) (*domain.Penalty, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p := *penalty
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO penalties (id, driver_id, shipment_id, type, amount, reason, is_active, is_paid, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, false, $8)
	`, p.ID, p.DriverID, p.ShipmentID, p.Type, p.Amount, p.Reason, p.IsActive, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert penalty: %w", err)
	}

	w, err := lockWallet(ctx, tx, driverUserID)
	if err != nil {
		return nil, err
	}

	// Collect immediately only when the balance covers the full amount.
	if w.Balance.GreaterThanOrEqual(p.Amount) {
		if _, err := debitLocked(ctx, tx, w, p.Amount, "Penalty: "+p.Reason, p.ID); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx, `
			UPDATE penalties SET is_paid = true, paid_at = $1 WHERE id = $2
		`, now, p.ID)
		if err != nil {
			return nil, fmt.Errorf("mark penalty paid: %w", err)
		}
		p.IsPaid = true
		p.PaidAt = &now
	}

	return &p, tx.Commit(ctx)
}

func (r *WalletRepo) ListOutstandingPenalties(ctx context.Context, driverID string) ([]domain.Penalty, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, driver_id, COALESCE(shipment_id, ''), type, amount::text, reason, is_active, is_paid, paid_at, created_at
		FROM penalties
		WHERE driver_id = $1 AND is_active = true AND is_paid = false
		ORDER BY created_at DESC
	`, driverID)
	if err != nil {
		return nil, fmt.Errorf("query penalties: %w", err)
	}
	defer rows.Close()

	penalties := []domain.Penalty{}
	for rows.Next() {
		var p domain.Penalty
		var amount string
		err := rows.Scan(&p.ID, &p.DriverID, &p.ShipmentID, &p.Type, &amount, &p.Reason, &p.IsActive, &p.IsPaid, &p.PaidAt, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan penalty: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		penalties = append(penalties, p)
	}
	return penalties, rows.Err()
}

package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shared/util"
	"freightflow/internal/wallet/domain"
)

// fakeWalletRepo reproduces the repository contract in memory, including the
// all-or-nothing behavior of each mutating call.
type fakeWalletRepo struct {
	mu        sync.Mutex
	wallets   map[string]*domain.Wallet
	txs       []domain.Transaction
	penalties []domain.Penalty
	nextID    int
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: map[string]*domain.Wallet{}}
}

func (f *fakeWalletRepo) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeWalletRepo) get(userID string) *domain.Wallet {
	w, ok := f.wallets[userID]
	if !ok {
		w = &domain.Wallet{ID: "w-" + userID, UserID: userID}
		f.wallets[userID] = w
	}
	return w
}

func (f *fakeWalletRepo) GetOrCreate(ctx context.Context, userID string) (*domain.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := *f.get(userID)
	return &w, nil
}

func (f *fakeWalletRepo) record(walletID, txType, status string, amount decimal.Decimal, description, referenceID string) domain.Transaction {
	now := time.Now().UTC()
	t := domain.Transaction{
		ID:          f.id("tx"),
		WalletID:    walletID,
		Type:        txType,
		Status:      status,
		Amount:      amount,
		Description: description,
		ReferenceID: referenceID,
		CreatedAt:   now,
	}
	if status == domain.TxStatusCompleted {
		t.CompletedAt = &now
	}
	f.txs = append(f.txs, t)
	return t
}

func (f *fakeWalletRepo) creditLocked(w *domain.Wallet, amount decimal.Decimal, description, referenceID string) domain.Transaction {
	w.Balance = w.Balance.Add(amount)
	w.TotalEarnings = w.TotalEarnings.Add(amount)
	return f.record(w.ID, domain.TxTypeDeposit, domain.TxStatusCompleted, amount, description, referenceID)
}

func (f *fakeWalletRepo) debitLocked(w *domain.Wallet, amount decimal.Decimal, description, referenceID string) (domain.Transaction, error) {
	if w.Balance.LessThan(amount) {
		return domain.Transaction{}, fmt.Errorf("balance %s < %s: %w", w.Balance, amount, apperrors.ErrInsufficientFunds)
	}
	w.Balance = w.Balance.Sub(amount)
	w.TotalSpent = w.TotalSpent.Add(amount)
	return f.record(w.ID, domain.TxTypePayment, domain.TxStatusCompleted, amount, description, referenceID), nil
}

func (f *fakeWalletRepo) ApplyCredit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.creditLocked(f.get(userID), amount, description, referenceID)
	return &t, nil
}

func (f *fakeWalletRepo) ApplyDebit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.debitLocked(f.get(userID), amount, description, referenceID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (f *fakeWalletRepo) TransferPayment(ctx context.Context, debitUserID, creditUserID string,
	debitAmount, creditAmount decimal.Decimal,
	debitDescription, creditDescription, referenceID string) (*domain.Transaction, *domain.Transaction, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	debitTx, err := f.debitLocked(f.get(debitUserID), debitAmount, debitDescription, referenceID)
	if err != nil {
		return nil, nil, err
	}
	creditTx := f.creditLocked(f.get(creditUserID), creditAmount, creditDescription, referenceID)
	return &debitTx, &creditTx, nil
}

func (f *fakeWalletRepo) HoldWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w := f.get(userID)
	if w.Balance.LessThan(amount) {
		return nil, fmt.Errorf("balance %s < %s: %w", w.Balance, amount, apperrors.ErrInsufficientFunds)
	}
	w.Balance = w.Balance.Sub(amount)
	w.PendingBalance = w.PendingBalance.Add(amount)
	t := f.record(w.ID, domain.TxTypeWithdrawal, domain.TxStatusPending, amount, "Withdrawal request", "")
	return &t, nil
}

func (f *fakeWalletRepo) ListPendingWithdrawals(ctx context.Context, holdFor time.Duration, limit int) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().Add(-holdFor)
	var out []domain.Transaction
	for _, t := range f.txs {
		if t.Type == domain.TxTypeWithdrawal && t.Status == domain.TxStatusPending && !t.CreatedAt.After(cutoff) {
			out = append(out, t)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeWalletRepo) CompleteWithdrawal(ctx context.Context, transactionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.txs {
		t := &f.txs[i]
		if t.ID != transactionID || t.Type != domain.TxTypeWithdrawal || t.Status != domain.TxStatusPending {
			continue
		}
		now := time.Now().UTC()
		t.Status = domain.TxStatusCompleted
		t.CompletedAt = &now
		for _, w := range f.wallets {
			if w.ID == t.WalletID {
				w.PendingBalance = w.PendingBalance.Sub(t.Amount)
			}
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeWalletRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	walletID := f.get(userID).ID
	var out []domain.Transaction
	for _, t := range f.txs {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeWalletRepo) ApplyPenalty(ctx context.Context, penalty *domain.Penalty, driverUserID string) (*domain.Penalty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := *penalty
	p.ID = f.id("pen")
	p.CreatedAt = time.Now().UTC()

	w := f.get(driverUserID)
	if w.Balance.GreaterThanOrEqual(p.Amount) {
		if _, err := f.debitLocked(w, p.Amount, "Penalty: "+p.Reason, p.ID); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		p.IsPaid = true
		p.PaidAt = &now
	}

	f.penalties = append(f.penalties, p)
	return &p, nil
}

func (f *fakeWalletRepo) ListOutstandingPenalties(ctx context.Context, driverID string) ([]domain.Penalty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Penalty
	for _, p := range f.penalties {
		if p.DriverID == driverID && p.IsActive && !p.IsPaid {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeDrivers struct {
	users map[string]string
}

func (f *fakeDrivers) UserIDForDriver(ctx context.Context, driverID string) (string, error) {
	userID, ok := f.users[driverID]
	if !ok {
		return "", fmt.Errorf("driver %s: %w", driverID, apperrors.ErrNotFound)
	}
	return userID, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(ctx context.Context, userID, eventType string, payload map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, userID+":"+eventType)
}

func newTestWalletService(repo *fakeWalletRepo) (*WalletService, *fakeNotifier) {
	notifier := &fakeNotifier{}
	drivers := &fakeDrivers{users: map[string]string{"drv-1": "user-drv-1"}}
	return NewWalletService(repo, drivers, notifier, util.New()), notifier
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCreditRejectsNonPositiveAmounts(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)
	ctx := context.Background()

	for _, amount := range []string{"0", "-5"} {
		_, err := svc.Credit(ctx, "user-1", dec(amount), "", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount, amount)
	}
	assert.Empty(t, repo.txs)
}

func TestDebitInsufficientFundsLeavesNoTrace(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", dec("100"), "", "")
	require.NoError(t, err)

	_, err = svc.Debit(ctx, "user-1", dec("150"), "", "")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	w, err := svc.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("100")), "balance must be untouched, got %s", w.Balance)

	txs, err := svc.ListTransactions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxTypeDeposit, txs[0].Type)
}

func TestSettleShipmentPaymentSplitsPrice(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, notifier := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "shipper-1", dec("2500"), "", "")
	require.NoError(t, err)

	fee, payout, err := svc.SettleShipmentPayment(ctx, "ship-1", "LOAD_20260115_101500_001", "shipper-1", "user-drv-1", dec("1000"))
	require.NoError(t, err)

	assert.True(t, fee.Equal(dec("100")), "fee %s", fee)
	assert.True(t, payout.Equal(dec("900")), "payout %s", payout)
	assert.True(t, fee.Add(payout).Equal(dec("1000")))

	shipper, _ := svc.GetOrCreateWallet(ctx, "shipper-1")
	driver, _ := svc.GetOrCreateWallet(ctx, "user-drv-1")
	assert.True(t, shipper.Balance.Equal(dec("1500")))
	assert.True(t, driver.Balance.Equal(dec("900")))

	driverTxs, _ := svc.ListTransactions(ctx, "user-drv-1")
	require.Len(t, driverTxs, 1)
	assert.Equal(t, "Earnings from shipment #LOAD_20260115_101500_001", driverTxs[0].Description)
	assert.Equal(t, "ship-1", driverTxs[0].ReferenceID)

	shipperTxs, _ := svc.ListTransactions(ctx, "shipper-1")
	require.Len(t, shipperTxs, 2)

	assert.Contains(t, notifier.events, "user-drv-1:payment_received")
}

func TestSettleShipmentPaymentUnderfundedShipper(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, notifier := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "shipper-1", dec("500"), "", "")
	require.NoError(t, err)

	_, _, err = svc.SettleShipmentPayment(ctx, "ship-1", "LOAD_X", "shipper-1", "user-drv-1", dec("1000"))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	shipper, _ := svc.GetOrCreateWallet(ctx, "shipper-1")
	driver, _ := svc.GetOrCreateWallet(ctx, "user-drv-1")
	assert.True(t, shipper.Balance.Equal(dec("500")))
	assert.True(t, driver.Balance.IsZero())
	assert.Empty(t, notifier.events)
}

func TestInitiateWithdrawalHoldsFunds(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", dec("300"), "", "")
	require.NoError(t, err)

	tx, err := svc.InitiateWithdrawal(ctx, "user-1", dec("120"))
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, tx.Status)
	assert.Equal(t, domain.TxTypeWithdrawal, tx.Type)

	w, _ := svc.GetOrCreateWallet(ctx, "user-1")
	assert.True(t, w.Balance.Equal(dec("180")))
	assert.True(t, w.PendingBalance.Equal(dec("120")))

	_, err = svc.InitiateWithdrawal(ctx, "user-1", dec("500"))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
}

func TestApplyPenaltyCollectsWhenFunded(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, notifier := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-drv-1", dec("200"), "", "")
	require.NoError(t, err)

	p, err := svc.ApplyPenalty(ctx, "drv-1", dec("50"), "late delivery", "ship-1")
	require.NoError(t, err)
	assert.True(t, p.IsPaid)
	require.NotNil(t, p.PaidAt)

	w, _ := svc.GetOrCreateWallet(ctx, "user-drv-1")
	assert.True(t, w.Balance.Equal(dec("150")))

	outstanding, err := svc.ListOutstandingPenalties(ctx, "drv-1")
	require.NoError(t, err)
	assert.Empty(t, outstanding)

	assert.Contains(t, notifier.events, "user-drv-1:penalty_applied")
}

func TestApplyPenaltyStaysOutstandingWhenUnderfunded(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-drv-1", dec("30"), "", "")
	require.NoError(t, err)

	p, err := svc.ApplyPenalty(ctx, "drv-1", dec("50"), "damaged cargo", "")
	require.NoError(t, err)
	assert.False(t, p.IsPaid)

	// Partial collection is never attempted.
	w, _ := svc.GetOrCreateWallet(ctx, "user-drv-1")
	assert.True(t, w.Balance.Equal(dec("30")))

	outstanding, err := svc.ListOutstandingPenalties(ctx, "drv-1")
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, p.ID, outstanding[0].ID)
}

func TestApplyPenaltyUnknownDriver(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)

	_, err := svc.ApplyPenalty(context.Background(), "drv-ghost", dec("50"), "reason", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCompletedTransactionsReplayToBalance(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", dec("1000"), "", "")
	require.NoError(t, err)
	_, err = svc.Debit(ctx, "user-1", dec("250"), "", "")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "user-1", dec("75.50"), "", "")
	require.NoError(t, err)
	_, err = svc.InitiateWithdrawal(ctx, "user-1", dec("100"))
	require.NoError(t, err)

	w, err := svc.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)

	txs, err := svc.ListTransactions(ctx, "user-1")
	require.NoError(t, err)

	replayed := decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case domain.TxTypeDeposit:
			replayed = replayed.Add(tx.Amount)
		case domain.TxTypePayment, domain.TxTypeWithdrawal:
			replayed = replayed.Sub(tx.Amount)
		}
	}

	assert.True(t, replayed.Equal(w.Balance), "replayed %s, balance %s", replayed, w.Balance)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", dec("100"), "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Debit(ctx, "user-1", dec("30"), "", "")
		}()
	}
	wg.Wait()

	w, err := svc.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, w.Balance.IsNegative(), "balance went negative: %s", w.Balance)
	assert.True(t, w.Balance.Equal(dec("10")), "exactly three debits of 30 fit into 100, got %s", w.Balance)
}

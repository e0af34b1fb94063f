package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightflow/internal/shared/util"
	"freightflow/internal/wallet/domain"
)

func TestWorkerSettlesMaturedWithdrawals(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", dec("500"), "", "")
	require.NoError(t, err)
	tx, err := svc.InitiateWithdrawal(ctx, "user-1", dec("200"))
	require.NoError(t, err)

	// Age the pending row past the hold period.
	repo.mu.Lock()
	for i := range repo.txs {
		if repo.txs[i].ID == tx.ID {
			repo.txs[i].CreatedAt = time.Now().Add(-time.Hour)
		}
	}
	repo.mu.Unlock()

	worker := NewWithdrawalWorker(repo, util.New(), time.Second, 5*time.Minute)
	worker.processBatch(ctx)

	w, err := svc.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.PendingBalance.IsZero(), "pending balance %s", w.PendingBalance)
	assert.True(t, w.Balance.Equal(dec("300")))

	txs, err := svc.ListTransactions(ctx, "user-1")
	require.NoError(t, err)
	for _, got := range txs {
		if got.ID == tx.ID {
			assert.Equal(t, domain.TxStatusCompleted, got.Status)
			assert.NotNil(t, got.CompletedAt)
		}
	}
}

func TestWorkerSkipsFreshWithdrawals(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", dec("500"), "", "")
	require.NoError(t, err)
	tx, err := svc.InitiateWithdrawal(ctx, "user-1", dec("200"))
	require.NoError(t, err)

	worker := NewWithdrawalWorker(repo, util.New(), time.Second, 5*time.Minute)
	worker.processBatch(ctx)

	w, err := svc.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.PendingBalance.Equal(dec("200")), "fresh withdrawal must stay on hold")

	txs, err := svc.ListTransactions(ctx, "user-1")
	require.NoError(t, err)
	for _, got := range txs {
		if got.ID == tx.ID {
			assert.Equal(t, domain.TxStatusPending, got.Status)
		}
	}
}

func TestWorkerRerunIsIdempotent(t *testing.T) {
	repo := newFakeWalletRepo()
	svc, _ := newTestWalletService(repo)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", dec("500"), "", "")
	require.NoError(t, err)
	_, err = svc.InitiateWithdrawal(ctx, "user-1", dec("200"))
	require.NoError(t, err)

	repo.mu.Lock()
	for i := range repo.txs {
		if repo.txs[i].Type == domain.TxTypeWithdrawal {
			repo.txs[i].CreatedAt = time.Now().Add(-time.Hour)
		}
	}
	repo.mu.Unlock()

	worker := NewWithdrawalWorker(repo, util.New(), time.Second, 5*time.Minute)
	worker.processBatch(ctx)
	worker.processBatch(ctx)

	// A duplicate run must not release the pending amount twice.
	w, err := svc.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.PendingBalance.IsZero())
	assert.True(t, w.Balance.Equal(dec("300")))
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	repo := newFakeWalletRepo()
	worker := NewWithdrawalWorker(repo, util.New(), 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

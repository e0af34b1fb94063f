package app

import (
	"context"
	"fmt"
	"time"

	"freightflow/internal/shared/util"
	"freightflow/internal/wallet/domain"
)

// WithdrawalWorker settles pending withdrawals. The pending withdrawal
// transaction row is the durable job: the worker polls for rows older than
// the hold period and completes each with a status-guarded update, so a
// crash or a duplicate tick never settles twice.
type WithdrawalWorker struct {
	repo      domain.Repository
	logger    *util.Logger
	interval  time.Duration
	holdFor   time.Duration
	batchSize int
}

func NewWithdrawalWorker(repo domain.Repository, logger *util.Logger, interval, holdFor time.Duration) *WithdrawalWorker {
	return &WithdrawalWorker{
		repo:      repo,
		logger:    logger,
		interval:  interval,
		holdFor:   holdFor,
		batchSize: 50,
	}
}

// Start runs the polling loop until ctx is cancelled. Blocking call.
func (w *WithdrawalWorker) Start(ctx context.Context) {
	instance := "WithdrawalWorker.Start"

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info(instance, fmt.Sprintf("withdrawal settlement worker started (every %s, hold %s)", w.interval, w.holdFor))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(instance, "context cancelled, stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *WithdrawalWorker) processBatch(ctx context.Context) {
	instance := "WithdrawalWorker.processBatch"

	pending, err := w.repo.ListPendingWithdrawals(ctx, w.holdFor, w.batchSize)
	if err != nil {
		w.logger.Error(instance, err)
		return
	}
	if len(pending) == 0 {
		return
	}

	for _, tx := range pending {
		settled, err := w.repo.CompleteWithdrawal(ctx, tx.ID)
		if err != nil {
			w.logger.Warn(instance, fmt.Sprintf("failed to settle withdrawal %s: %v", tx.ID, err))
			continue
		}
		if settled {
			w.logger.OK(instance, fmt.Sprintf("withdrawal %s of %s settled", tx.ID, tx.Amount))
		}
	}
}

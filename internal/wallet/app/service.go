package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"freightflow/internal/shared/apperrors"
	"freightflow/internal/shared/util"
	"freightflow/internal/wallet/domain"
)

// DefaultFeeRate is the platform's cut of every settled shipment.
var DefaultFeeRate = decimal.NewFromFloat(0.10)

const recentTransactionLimit = 50

type WalletService struct {
	repo    domain.Repository
	drivers domain.DriverDirectory
	notify  domain.Notifier
	logger  *util.Logger
	feeRate decimal.Decimal
}

func NewWalletService(repo domain.Repository, drivers domain.DriverDirectory, notify domain.Notifier, logger *util.Logger) *WalletService {
	return &WalletService{
		repo:    repo,
		drivers: drivers,
		notify:  notify,
		logger:  logger,
		feeRate: DefaultFeeRate,
	}
}

func (s *WalletService) GetOrCreateWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

func (s *WalletService) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, userID, recentTransactionLimit)
}

func (s *WalletService) Credit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (*domain.Transaction, error) {
	instance := "WalletService.Credit"

	if amount.LessThanOrEqual(decimal.Zero) {
		s.logger.Warn(instance, fmt.Sprintf("rejected non-positive credit of %s for user %s", amount, userID))
		return nil, fmt.Errorf("credit of %s: %w", amount, apperrors.ErrInvalidAmount)
	}
	if description == "" {
		description = "Funds added"
	}

	tx, err := s.repo.ApplyCredit(ctx, userID, amount, description, referenceID)
	if err != nil {
		s.logger.Error(instance, err)
		return nil, err
	}

	s.logger.OK(instance, fmt.Sprintf("credited %s to user %s [tx=%s]", amount, userID, tx.ID))
	return tx, nil
}

func (s *WalletService) Debit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (*domain.Transaction, error) {
	instance := "WalletService.Debit"

	if amount.LessThanOrEqual(decimal.Zero) {
		s.logger.Warn(instance, fmt.Sprintf("rejected non-positive debit of %s for user %s", amount, userID))
		return nil, fmt.Errorf("debit of %s: %w", amount, apperrors.ErrInvalidAmount)
	}
	if description == "" {
		description = "Payment processed"
	}

	tx, err := s.repo.ApplyDebit(ctx, userID, amount, description, referenceID)
	if err != nil {
		s.logger.Warn(instance, fmt.Sprintf("debit of %s for user %s failed: %v", amount, userID, err))
		return nil, err
	}

	s.logger.OK(instance, fmt.Sprintf("debited %s from user %s [tx=%s]", amount, userID, tx.ID))
	return tx, nil
}

func (s *WalletService) InitiateWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Transaction, error) {
	instance := "WalletService.InitiateWithdrawal"

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("withdrawal of %s: %w", amount, apperrors.ErrInvalidAmount)
	}

	tx, err := s.repo.HoldWithdrawal(ctx, userID, amount)
	if err != nil {
		s.logger.Warn(instance, fmt.Sprintf("withdrawal of %s for user %s failed: %v", amount, userID, err))
		return nil, err
	}

	s.logger.Info(instance, fmt.Sprintf("withdrawal of %s pending for user %s [tx=%s]", amount, userID, tx.ID))
	return tx, nil
}

// SettleShipmentPayment moves the agreed price from the shipper to the
// platform fee and the driver payout. The debit and credit are one atomic
// unit: an underfunded shipper aborts the whole settlement.
func (s *WalletService) SettleShipmentPayment(ctx context.Context, shipmentID, loadNumber, shipperUserID, driverUserID string, price decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	instance := "WalletService.SettleShipmentPayment"

	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("settlement price %s: %w", price, apperrors.ErrInvalidAmount)
	}

	platformFee := price.Mul(s.feeRate)
	driverPayout := price.Sub(platformFee)

	label := loadNumber
	if label == "" && len(shipmentID) >= 8 {
		label = shipmentID[:8]
	}

	debitTx, creditTx, err := s.repo.TransferPayment(ctx,
		shipperUserID, driverUserID,
		price, driverPayout,
		fmt.Sprintf("Payment for shipment #%s", label),
		fmt.Sprintf("Earnings from shipment #%s", label),
		shipmentID,
	)
	if err != nil {
		s.logger.Warn(instance, fmt.Sprintf("settlement for shipment %s failed: %v", shipmentID, err))
		return decimal.Zero, decimal.Zero, err
	}

	s.notify.Notify(ctx, driverUserID, "payment_received", map[string]interface{}{
		"shipment_id": shipmentID,
		"amount":      driverPayout.String(),
	})

	s.logger.OK(instance, fmt.Sprintf("settled shipment %s: price=%s fee=%s payout=%s [debit=%s credit=%s]",
		shipmentID, price, platformFee, driverPayout, debitTx.ID, creditTx.ID))

	return platformFee, driverPayout, nil
}

// ApplyPenalty records an active unpaid penalty and collects it immediately
// when the driver's balance covers the amount. An underfunded penalty stays
// outstanding; there is no automatic collection on later credits.
func (s *WalletService) ApplyPenalty(ctx context.Context, driverID string, amount decimal.Decimal, reason, shipmentID string) (*domain.Penalty, error) {
	instance := "WalletService.ApplyPenalty"

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("penalty of %s: %w", amount, apperrors.ErrInvalidAmount)
	}

	driverUserID, err := s.drivers.UserIDForDriver(ctx, driverID)
	if err != nil {
		s.logger.Warn(instance, fmt.Sprintf("driver %s not found", driverID))
		return nil, err
	}

	penalty := &domain.Penalty{
		DriverID:   driverID,
		ShipmentID: shipmentID,
		Type:       domain.PenaltyTypePolicyViolation,
		Amount:     amount,
		Reason:     reason,
		IsActive:   true,
	}

	applied, err := s.repo.ApplyPenalty(ctx, penalty, driverUserID)
	if err != nil {
		s.logger.Error(instance, err)
		return nil, err
	}

	s.notify.Notify(ctx, driverUserID, "penalty_applied", map[string]interface{}{
		"penalty_id": applied.ID,
		"amount":     amount.String(),
		"reason":     reason,
		"paid":       applied.IsPaid,
	})

	if applied.IsPaid {
		s.logger.OK(instance, fmt.Sprintf("penalty %s of %s collected from driver %s", applied.ID, amount, driverID))
	} else {
		s.logger.Warn(instance, fmt.Sprintf("penalty %s of %s outstanding for driver %s (insufficient balance)", applied.ID, amount, driverID))
	}

	return applied, nil
}

func (s *WalletService) ListOutstandingPenalties(ctx context.Context, driverID string) ([]domain.Penalty, error) {
	return s.repo.ListOutstandingPenalties(ctx, driverID)
}

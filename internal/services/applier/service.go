// Package applier is the transaction-entry boundary. Every transaction
// mutation routes through here so the ledger's balance cache stays in step
// with the transaction log: create applies a delta, delete reverses one, and
// an edit is modeled as delete-then-reapply to avoid double-counting drift.
package applier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/interfaces"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// Service persists transactions and keeps the balance tracker consistent.
// Balance side-effects are best-effort: a failed cache write is logged, not
// propagated, because period close recomputes authoritative figures.
type Service struct {
	logger       *common.Logger
	transactions interfaces.TransactionStore
	ledgers      interfaces.LedgerStore
	balances     interfaces.BalanceService
	currency     interfaces.CurrencyService
}

var _ interfaces.TransactionService = (*Service)(nil)

// NewService creates the transaction applier.
func NewService(logger *common.Logger, storage interfaces.StorageManager, balances interfaces.BalanceService, currency interfaces.CurrencyService) *Service {
	return &Service{
		logger:       logger,
		transactions: storage.TransactionStore(),
		ledgers:      storage.LedgerStore(),
		balances:     balances,
		currency:     currency,
	}
}

// CreateTransaction validates and persists a new transaction against the
// caller's open ledger, then applies its balance delta.
func (s *Service) CreateTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	userID := common.ResolveUserID(ctx)

	if !models.ValidTransactionType(tx.Type) {
		return nil, fmt.Errorf("transaction type must be income or expense, got '%s'", tx.Type)
	}
	if tx.Amount.IsNegative() || tx.Amount.IsZero() {
		return nil, fmt.Errorf("transaction amount must be a positive magnitude, got %s", tx.Amount)
	}

	ledger, err := s.resolveOpenLedger(ctx, userID, tx.LedgerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tx.ID = uuid.NewString()
	tx.UserID = userID
	tx.LedgerID = ledger.ID
	tx.AccountID = strings.TrimSpace(tx.AccountID)
	if tx.Currency == "" {
		tx.Currency = s.currency.ReportingCurrency()
	}
	if tx.Date.IsZero() {
		tx.Date = now
	}
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if err := s.transactions.Create(ctx, &tx); err != nil {
		return nil, err
	}

	s.applyDelta(ctx, &tx, false)

	s.logger.Info().
		Str("user_id", userID).
		Str("transaction_id", tx.ID).
		Str("ledger_id", tx.LedgerID).
		Str("type", string(tx.Type)).
		Str("amount", tx.Amount.String()).
		Str("currency", tx.Currency).
		Msg("Transaction created")
	return &tx, nil
}

// UpdateTransaction edits an existing transaction. The old delta is reversed
// before the new state is persisted and re-applied, so amount, type, and
// account changes never double-count.
func (s *Service) UpdateTransaction(ctx context.Context, id string, update models.Transaction) (*models.Transaction, error) {
	userID := common.ResolveUserID(ctx)

	existing, err := s.transactions.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireOpen(ctx, userID, existing.LedgerID); err != nil {
		return nil, err
	}
	original := *existing

	if models.ValidTransactionType(update.Type) {
		existing.Type = update.Type
	}
	if update.Amount.IsPositive() {
		existing.Amount = update.Amount
	}
	if update.AccountID != "" {
		existing.AccountID = strings.TrimSpace(update.AccountID)
	}
	if update.Currency != "" {
		existing.Currency = update.Currency
	}
	if update.Category != "" {
		existing.Category = update.Category
	}
	if update.Channel != "" {
		existing.Channel = update.Channel
	}
	if update.Description != "" {
		existing.Description = update.Description
	}
	if !update.Date.IsZero() {
		existing.Date = update.Date
	}
	existing.UpdatedAt = time.Now()

	// Reverse the previously applied delta before the edit lands.
	s.applyDelta(ctx, &original, true)

	if err := s.transactions.Update(ctx, existing); err != nil {
		// Re-apply the original delta so the cache is not left short.
		s.applyDelta(ctx, &original, false)
		return nil, err
	}

	s.applyDelta(ctx, existing, false)

	s.logger.Info().
		Str("user_id", userID).
		Str("transaction_id", id).
		Msg("Transaction updated")
	return existing, nil
}

// DeleteTransaction removes a transaction and reverses its balance delta.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	userID := common.ResolveUserID(ctx)

	existing, err := s.transactions.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if _, err := s.requireOpen(ctx, userID, existing.LedgerID); err != nil {
		return err
	}

	if err := s.transactions.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.applyDelta(ctx, existing, true)

	s.logger.Info().
		Str("user_id", userID).
		Str("transaction_id", id).
		Str("ledger_id", existing.LedgerID).
		Msg("Transaction deleted")
	return nil
}

// ListByLedger returns a ledger's transactions, oldest first.
func (s *Service) ListByLedger(ctx context.Context, ledgerID string) ([]*models.Transaction, error) {
	return s.transactions.ListByLedger(ctx, common.ResolveUserID(ctx), ledgerID)
}

// resolveOpenLedger maps an optional ledger id onto the ledger transactions
// may be recorded against. An empty id targets the caller's open ledger.
func (s *Service) resolveOpenLedger(ctx context.Context, userID, ledgerID string) (*models.Ledger, error) {
	if ledgerID == "" {
		open, err := s.ledgers.GetOpen(ctx, userID)
		if err != nil {
			return nil, err
		}
		if open == nil {
			return nil, fmt.Errorf("no open ledger to record against: %w", models.ErrInvalidLedgerState)
		}
		return open, nil
	}
	return s.requireOpen(ctx, userID, ledgerID)
}

func (s *Service) requireOpen(ctx context.Context, userID, ledgerID string) (*models.Ledger, error) {
	ledger, err := s.ledgers.Get(ctx, userID, ledgerID)
	if err != nil {
		return nil, err
	}
	if !ledger.IsOpen() {
		return nil, fmt.Errorf("ledger '%s' is %s: %w", ledgerID, ledger.Status, models.ErrInvalidLedgerState)
	}
	return ledger, nil
}

// applyDelta pushes one transaction's effect into the balance cache, in the
// reporting currency. Failures are logged and swallowed: the cache is
// advisory and self-heals at period close.
func (s *Service) applyDelta(ctx context.Context, tx *models.Transaction, reverse bool) {
	amount, ok := s.currency.ToReportingCurrency(tx.Amount.Abs(), tx.Currency)
	if !ok {
		s.logger.Warn().
			Str("transaction_id", tx.ID).
			Str("currency", tx.Currency).
			Err(models.ErrRateUnavailable).
			Msg("Applying unconverted amount to balance cache")
	}

	var err error
	var delta func(context.Context, string, string, decimal.Decimal, models.TransactionType) (*models.AccountBalance, error)
	if reverse {
		delta = s.balances.ReverseDelta
	} else {
		delta = s.balances.ApplyDelta
	}
	if _, err = delta(ctx, tx.LedgerID, tx.AccountID, amount, tx.Type); err != nil {
		s.logger.Warn().
			Err(err).
			Str("transaction_id", tx.ID).
			Str("ledger_id", tx.LedgerID).
			Str("account_id", tx.AccountID).
			Bool("reverse", reverse).
			Msg("Balance cache update failed; close will reconcile")
	}
}

// Package balance maintains the per-account running closing balances cached
// on each open ledger.
package balance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/interfaces"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// maxRetries bounds the optimistic-write retry loop when concurrent deltas
// race on the same ledger version.
const maxRetries = 3

// Service applies single-transaction deltas to a ledger's AccountBalance
// cache. The cache is advisory: period close recomputes authoritative totals
// from the full transaction set, so a failed side-effect write here is
// tolerable and self-heals at close.
type Service struct {
	logger  *common.Logger
	ledgers interfaces.LedgerStore
}

var _ interfaces.BalanceService = (*Service)(nil)

// NewService creates the balance tracker.
func NewService(logger *common.Logger, ledgers interfaces.LedgerStore) *Service {
	return &Service{logger: logger, ledgers: ledgers}
}

// ApplyDelta adjusts the running closing balance of one account inside the
// owning ledger: income adds, expense subtracts. Amount must already be in
// the reporting currency. Orphan transactions (empty accountID) and accounts
// not registered in the ledger's opening configuration are no-ops.
func (s *Service) ApplyDelta(ctx context.Context, ledgerID, accountID string, amount decimal.Decimal, txType models.TransactionType) (*models.AccountBalance, error) {
	return s.apply(ctx, ledgerID, accountID, signedDelta(amount, txType))
}

// ReverseDelta undoes a previously applied delta, used when a transaction is
// deleted or re-applied after an edit.
func (s *Service) ReverseDelta(ctx context.Context, ledgerID, accountID string, amount decimal.Decimal, txType models.TransactionType) (*models.AccountBalance, error) {
	return s.apply(ctx, ledgerID, accountID, signedDelta(amount, txType).Neg())
}

func signedDelta(amount decimal.Decimal, txType models.TransactionType) decimal.Decimal {
	if txType == models.TxExpense {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

func (s *Service) apply(ctx context.Context, ledgerID, accountID string, delta decimal.Decimal) (*models.AccountBalance, error) {
	if strings.TrimSpace(accountID) == "" {
		// Orphan transaction: counted in ledger-wide totals, excluded from
		// per-account tracking.
		return nil, nil
	}

	userID := common.ResolveUserID(ctx)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ledger, err := s.ledgers.Get(ctx, userID, ledgerID)
		if err != nil {
			return nil, err
		}
		if !ledger.IsOpen() {
			return nil, fmt.Errorf("ledger '%s' is %s: %w", ledgerID, ledger.Status, models.ErrInvalidLedgerState)
		}

		entry := ledger.FindAccountBalance(accountID)
		if entry == nil {
			// The account was not opted into this period. Entries are never
			// auto-created; the miss is logged and the delta dropped.
			s.logger.Warn().
				Str("user_id", userID).
				Str("ledger_id", ledgerID).
				Str("account_id", accountID).
				Err(models.ErrBalanceCacheMiss).
				Msg("Transaction references account absent from ledger balance list")
			return nil, nil
		}

		entry.ClosingBalance = entry.ClosingBalance.Add(delta)

		if err := s.ledgers.Update(ctx, ledger, ledger.Version); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				lastErr = err
				s.logger.Debug().
					Str("ledger_id", ledgerID).
					Int("attempt", attempt).
					Msg("Balance write lost version race, retrying")
				continue
			}
			return nil, err
		}

		updated := *ledger.FindAccountBalance(accountID)
		s.logger.Debug().
			Str("ledger_id", ledgerID).
			Str("account_id", accountID).
			Str("delta", delta.String()).
			Str("closing_balance", updated.ClosingBalance.String()).
			Msg("Account balance updated")
		return &updated, nil
	}

	return nil, fmt.Errorf("balance update for account '%s' exhausted %d attempts: %w", accountID, maxRetries, lastErr)
}

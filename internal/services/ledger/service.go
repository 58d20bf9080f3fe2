// Package ledger owns the accounting-period state machine: opening, opening
// detail edits, metric aggregation, and the authoritative period close.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/interfaces"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// Service implements the ledger lifecycle. At most one ledger per owner is
// open at any time; the storage layer enforces this with an atomic claim so
// concurrent starts cannot both succeed.
type Service struct {
	logger       *common.Logger
	ledgers      interfaces.LedgerStore
	transactions interfaces.TransactionStore
	accounts     interfaces.AccountStore
	currency     interfaces.CurrencyService
}

var _ interfaces.LedgerService = (*Service)(nil)

// NewService creates the ledger service.
func NewService(logger *common.Logger, storage interfaces.StorageManager, currency interfaces.CurrencyService) *Service {
	return &Service{
		logger:       logger,
		ledgers:      storage.LedgerStore(),
		transactions: storage.TransactionStore(),
		accounts:     storage.AccountStore(),
		currency:     currency,
	}
}

// StartLedger opens a new accounting period. The opening configuration must
// contain at least one valid account entry; entries may be seeded from the
// latest closed ledger's closing snapshot via params.CarryForward.
func (s *Service) StartLedger(ctx context.Context, params interfaces.StartLedgerParams) (*models.Ledger, error) {
	userID := common.ResolveUserID(ctx)

	balances := params.AccountBalances
	if len(balances) == 0 && params.CarryForward {
		carried, err := s.RolloverBalances(ctx)
		if err != nil {
			return nil, err
		}
		balances = carried
	}

	validated, err := s.validateBalances(ctx, userID, balances)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	startDate := params.StartDate
	if startDate.IsZero() {
		startDate = now
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = startDate.Format("January 2006")
	}

	ledger := &models.Ledger{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            name,
		Status:          models.LedgerOpen,
		StartDate:       startDate,
		AccountBalances: validated,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	ledger.OpeningBalance = ledger.AggregateOpening()

	if err := s.ledgers.Create(ctx, ledger); err != nil {
		if errors.Is(err, models.ErrLedgerAlreadyOpen) {
			// Name the blocking ledger so the caller can explain the refusal.
			if open, getErr := s.ledgers.GetOpen(ctx, userID); getErr == nil && open != nil {
				return nil, fmt.Errorf("ledger '%s' is still open: %w", open.Name, models.ErrLedgerAlreadyOpen)
			}
		}
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("ledger_id", ledger.ID).
		Str("name", ledger.Name).
		Str("opening_balance", ledger.OpeningBalance.String()).
		Int("accounts", len(ledger.AccountBalances)).
		Msg("Ledger started")
	return ledger, nil
}

// validateBalances filters and normalizes an opening configuration: entries
// need a non-empty account id, ids must be unique within the list, and
// display names/kinds are labeled from the account directory when missing.
// Each closing balance is initialized equal to its opening balance.
func (s *Service) validateBalances(ctx context.Context, userID string, balances []models.AccountBalance) ([]models.AccountBalance, error) {
	validated := make([]models.AccountBalance, 0, len(balances))
	seen := make(map[string]bool, len(balances))

	for _, entry := range balances {
		entry.AccountID = strings.TrimSpace(entry.AccountID)
		if entry.AccountID == "" {
			continue
		}
		if seen[entry.AccountID] {
			return nil, fmt.Errorf("duplicate account '%s' in opening configuration: %w",
				entry.AccountID, models.ErrInvalidAccountConfiguration)
		}
		seen[entry.AccountID] = true

		if entry.AccountName == "" || !models.ValidAccountKind(entry.Kind) {
			if acct, err := s.accounts.Get(ctx, userID, entry.AccountID); err == nil {
				if entry.AccountName == "" {
					entry.AccountName = acct.Name
				}
				if !models.ValidAccountKind(entry.Kind) {
					entry.Kind = acct.Kind
				}
			}
		}
		if !models.ValidAccountKind(entry.Kind) {
			entry.Kind = models.AccountBank
		}

		entry.ClosingBalance = entry.OpeningBalance
		validated = append(validated, entry)
	}

	if len(validated) == 0 {
		return nil, fmt.Errorf("opening configuration needs at least one account with an id and balance: %w",
			models.ErrInvalidAccountConfiguration)
	}
	return validated, nil
}

// UpdateOpeningDetails replaces an open ledger's opening configuration and
// start date. Closing balances reset to the new openings; deltas already
// applied against the old configuration are discarded (close recomputes
// authoritative figures from the transaction log regardless).
func (s *Service) UpdateOpeningDetails(ctx context.Context, ledgerID string, balances []models.AccountBalance, startDate time.Time) (*models.Ledger, error) {
	userID := common.ResolveUserID(ctx)

	ledger, err := s.ledgers.Get(ctx, userID, ledgerID)
	if err != nil {
		return nil, err
	}
	if !ledger.IsOpen() {
		return nil, fmt.Errorf("ledger '%s' is %s: %w", ledgerID, ledger.Status, models.ErrInvalidLedgerState)
	}

	validated, err := s.validateBalances(ctx, userID, balances)
	if err != nil {
		return nil, err
	}

	ledger.AccountBalances = validated
	ledger.OpeningBalance = ledger.AggregateOpening()
	if !startDate.IsZero() {
		ledger.StartDate = startDate
	}

	if err := s.ledgers.Update(ctx, ledger, ledger.Version); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("ledger_id", ledgerID).
		Str("opening_balance", ledger.OpeningBalance.String()).
		Int("accounts", len(ledger.AccountBalances)).
		Msg("Ledger opening details updated")
	return ledger, nil
}

// ledgerActivity is the per-transaction-set aggregation shared by metrics
// and close: ledger-wide totals plus net signed movement per account.
type ledgerActivity struct {
	income     decimal.Decimal
	expenses   decimal.Decimal
	investment decimal.Decimal
	byChannel  map[models.PaymentChannel]decimal.Decimal
	perAccount map[string]decimal.Decimal
	count      int
	orphans    int
}

func (s *Service) aggregate(txs []*models.Transaction) *ledgerActivity {
	act := &ledgerActivity{
		income:     decimal.Zero,
		expenses:   decimal.Zero,
		investment: decimal.Zero,
		byChannel: map[models.PaymentChannel]decimal.Decimal{
			models.ChannelWallet: decimal.Zero,
			models.ChannelCard:   decimal.Zero,
		},
		perAccount: make(map[string]decimal.Decimal),
	}

	for _, tx := range txs {
		amount, ok := s.currency.ToReportingCurrency(tx.Amount.Abs(), tx.Currency)
		if !ok {
			// Rate miss is non-fatal: the unconverted figure keeps the
			// aggregate moving and the gap is visible in the logs.
			s.logger.Warn().
				Str("transaction_id", tx.ID).
				Str("currency", tx.Currency).
				Err(models.ErrRateUnavailable).
				Msg("Aggregating unconverted amount")
		}

		act.count++
		signed := amount
		switch tx.Type {
		case models.TxIncome:
			act.income = act.income.Add(amount)
		case models.TxExpense:
			act.expenses = act.expenses.Add(amount)
			signed = amount.Neg()
			channel := models.NormalizeChannel(tx.Channel)
			act.byChannel[channel] = act.byChannel[channel].Add(amount)
			if models.IsInvestmentCategory(tx.Category) {
				act.investment = act.investment.Add(amount)
			}
		default:
			continue
		}

		if tx.IsOrphan() {
			act.orphans++
			continue
		}
		act.perAccount[tx.AccountID] = act.perAccount[tx.AccountID].Add(signed)
	}

	return act
}

// ComputeMetrics aggregates a ledger's full transaction set into reporting
// figures, all normalized to the reporting currency. Per-account closings are
// computed from the transaction log, not from the cached balance list.
func (s *Service) ComputeMetrics(ctx context.Context, ledgerID string) (*models.LedgerMetrics, error) {
	userID := common.ResolveUserID(ctx)

	ledger, err := s.ledgers.Get(ctx, userID, ledgerID)
	if err != nil {
		return nil, err
	}
	txs, err := s.transactions.ListByLedger(ctx, userID, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for ledger '%s': %w", ledgerID, err)
	}

	act := s.aggregate(txs)

	perAccount := make(map[string]decimal.Decimal, len(ledger.AccountBalances))
	for _, entry := range ledger.AccountBalances {
		perAccount[entry.AccountID] = entry.OpeningBalance.Add(act.perAccount[entry.AccountID])
	}

	opening := ledger.AggregateOpening()
	cardSpend := act.byChannel[models.ChannelCard]

	metrics := &models.LedgerMetrics{
		LedgerID:         ledgerID,
		TotalIncome:      act.income,
		TotalExpenses:    act.expenses,
		TotalInvestment:  act.investment,
		ExpenseByChannel: act.byChannel,
		// With-card deducts every expense; excluding-card defers card-channel
		// spend as a liability settled in a later period.
		IndicativeClosingWithCard:      opening.Add(act.income).Sub(act.expenses),
		IndicativeClosingExcludingCard: opening.Add(act.income).Sub(act.expenses.Sub(cardSpend)),
		PerAccountClosing:              perAccount,
		TransactionCount:               act.count,
		OrphanCount:                    act.orphans,
	}
	return metrics, nil
}

// CloseLedger transitions a ledger from open to closed exactly once. Closing
// balances are recomputed authoritatively from the full transaction set,
// overwriting whatever the incremental cache drifted to; the complete closed
// state is assembled before the single conditional write. A non-nil override
// becomes the reported aggregate while the computed aggregate is always
// stored alongside it.
func (s *Service) CloseLedger(ctx context.Context, ledgerID string, closingDate time.Time, override *decimal.Decimal) (*models.Ledger, error) {
	userID := common.ResolveUserID(ctx)

	ledger, err := s.ledgers.Get(ctx, userID, ledgerID)
	if err != nil {
		return nil, err
	}
	if !ledger.IsOpen() {
		// Retrying an already-closed ledger fails loudly instead of
		// double-closing; the stored figures are untouched.
		return nil, fmt.Errorf("ledger '%s' is %s: %w", ledgerID, ledger.Status, models.ErrInvalidLedgerState)
	}

	txs, err := s.transactions.ListByLedger(ctx, userID, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for ledger '%s': %w", ledgerID, err)
	}
	act := s.aggregate(txs)

	for i := range ledger.AccountBalances {
		entry := &ledger.AccountBalances[i]
		entry.ClosingBalance = entry.OpeningBalance.Add(act.perAccount[entry.AccountID])
	}

	computed := ledger.AggregateClosing()
	ledger.ComputedClosingBalance = &computed
	if override != nil {
		reported := *override
		ledger.ClosingBalance = &reported
		if !reported.Equal(computed) {
			s.logger.Info().
				Str("ledger_id", ledgerID).
				Str("computed", computed.String()).
				Str("override", reported.String()).
				Msg("Reported closing balance overridden against statement")
		}
	} else {
		ledger.ClosingBalance = &computed
	}

	if closingDate.IsZero() {
		closingDate = time.Now()
	}
	ledger.EndDate = &closingDate

	if err := s.ledgers.MarkClosed(ctx, ledger, ledger.Version); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("ledger_id", ledgerID).
		Str("name", ledger.Name).
		Str("closing_balance", ledger.ClosingBalance.String()).
		Int("transactions", act.count).
		Msg("Ledger closed")
	return ledger, nil
}

// GetLedger returns one ledger by id.
func (s *Service) GetLedger(ctx context.Context, ledgerID string) (*models.Ledger, error) {
	return s.ledgers.Get(ctx, common.ResolveUserID(ctx), ledgerID)
}

// GetOpenLedger returns the caller's open ledger, or nil when none exists.
func (s *Service) GetOpenLedger(ctx context.Context) (*models.Ledger, error) {
	return s.ledgers.GetOpen(ctx, common.ResolveUserID(ctx))
}

// ListLedgers returns all of the caller's ledgers, newest first.
func (s *Service) ListLedgers(ctx context.Context) ([]*models.Ledger, error) {
	return s.ledgers.List(ctx, common.ResolveUserID(ctx))
}

// RolloverBalances re-expresses the most recently closed ledger's closing
// snapshot as opening balances for the next period. Returns nil when the
// caller has no closed ledger yet.
func (s *Service) RolloverBalances(ctx context.Context) ([]models.AccountBalance, error) {
	ledgers, err := s.ListLedgers(ctx)
	if err != nil {
		return nil, err
	}

	var latest *models.Ledger
	for _, l := range ledgers {
		if l.Status != models.LedgerClosed || l.EndDate == nil {
			continue
		}
		if latest == nil || l.EndDate.After(*latest.EndDate) {
			latest = l
		}
	}
	if latest == nil {
		return nil, nil
	}

	carried := make([]models.AccountBalance, len(latest.AccountBalances))
	for i, entry := range latest.AccountBalances {
		carried[i] = models.AccountBalance{
			AccountID:      entry.AccountID,
			AccountName:    entry.AccountName,
			Kind:           entry.Kind,
			OpeningBalance: entry.ClosingBalance,
			ClosingBalance: entry.ClosingBalance,
		}
	}
	return carried, nil
}

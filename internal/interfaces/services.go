package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rajkumarpandit/macrofin/internal/models"
)

// StartLedgerParams carries the opening configuration for a new ledger.
type StartLedgerParams struct {
	Name            string
	StartDate       time.Time
	AccountBalances []models.AccountBalance

	// CarryForward seeds AccountBalances from the most recently closed
	// ledger's closing snapshot (the rollover convention). Explicit entries
	// take precedence when both are supplied.
	CarryForward bool
}

// LedgerService owns the ledger state machine and metric aggregation.
type LedgerService interface {
	StartLedger(ctx context.Context, params StartLedgerParams) (*models.Ledger, error)
	UpdateOpeningDetails(ctx context.Context, ledgerID string, balances []models.AccountBalance, startDate time.Time) (*models.Ledger, error)

	// CloseLedger recomputes authoritative per-account closing balances from
	// the full transaction set, overwriting the incremental cache. A non-nil
	// override becomes the reported aggregate closing balance; the computed
	// aggregate is stored alongside it either way.
	CloseLedger(ctx context.Context, ledgerID string, closingDate time.Time, override *decimal.Decimal) (*models.Ledger, error)

	ComputeMetrics(ctx context.Context, ledgerID string) (*models.LedgerMetrics, error)

	GetLedger(ctx context.Context, ledgerID string) (*models.Ledger, error)
	GetOpenLedger(ctx context.Context) (*models.Ledger, error)
	ListLedgers(ctx context.Context) ([]*models.Ledger, error)

	// RolloverBalances returns the latest closed ledger's closing snapshot
	// re-expressed as opening balances, or nil when no closed ledger exists.
	RolloverBalances(ctx context.Context) ([]models.AccountBalance, error)
}

// BalanceService is the incremental account-balance cache updater. Its writes
// are best-effort; CloseLedger recomputes the authoritative figures.
type BalanceService interface {
	// ApplyDelta adjusts the named account's running closing balance inside
	// the owning ledger: income adds, expense subtracts. Amount must already
	// be in the reporting currency. Orphan (empty accountID) and unregistered
	// accounts are no-ops returning (nil, nil).
	ApplyDelta(ctx context.Context, ledgerID, accountID string, amount decimal.Decimal, txType models.TransactionType) (*models.AccountBalance, error)

	// ReverseDelta undoes a previously applied delta (transaction deletion).
	ReverseDelta(ctx context.Context, ledgerID, accountID string, amount decimal.Decimal, txType models.TransactionType) (*models.AccountBalance, error)
}

// CurrencyService normalizes amounts into the reporting currency using the
// current exchange-rate table.
type CurrencyService interface {
	// ToReportingCurrency converts amount from the given currency. Unknown
	// codes return the amount unchanged with ok=false (rate-unavailable,
	// logged by the implementation).
	ToReportingCurrency(amount decimal.Decimal, currency string) (decimal.Decimal, bool)

	// Refresh fetches a fresh rate table from the provider and persists it.
	Refresh(ctx context.Context) (*models.ExchangeRateTable, error)

	// Table returns the current snapshot, or nil when none is loaded.
	Table() *models.ExchangeRateTable

	ReportingCurrency() string
}

// TransactionService is the transaction-entry boundary. Every mutation keeps
// the balance cache consistent via the applier: create applies a delta,
// delete reverses one, edit is delete-then-reapply.
type TransactionService interface {
	CreateTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, update models.Transaction) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ListByLedger(ctx context.Context, ledgerID string) ([]*models.Transaction, error)
}

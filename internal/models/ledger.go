package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerStatus is the lifecycle state of an accounting period.
type LedgerStatus string

const (
	LedgerOpen   LedgerStatus = "open"
	LedgerClosed LedgerStatus = "closed"
)

// AccountKind categorizes the financial account behind a balance entry.
type AccountKind string

const (
	AccountBank       AccountKind = "bank"
	AccountCreditCard AccountKind = "creditCard"
)

// ValidAccountKind returns true if k is a recognized account kind.
func ValidAccountKind(k AccountKind) bool {
	return k == AccountBank || k == AccountCreditCard
}

// AccountBalance is a per-financial-account opening/closing balance snapshot
// embedded within a Ledger. Credit-card balances represent debt and are
// stored as negative amounts.
type AccountBalance struct {
	AccountID      string          `json:"account_id"`
	AccountName    string          `json:"account_name"`
	Kind           AccountKind     `json:"kind"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// SignedOpening returns the opening balance with the credit-card debt
// convention applied: credit-card entries always contribute negatively.
func (ab AccountBalance) SignedOpening() decimal.Decimal {
	if ab.Kind == AccountCreditCard {
		return ab.OpeningBalance.Abs().Neg()
	}
	return ab.OpeningBalance
}

// SignedClosing returns the closing balance with the credit-card debt
// convention applied.
func (ab AccountBalance) SignedClosing() decimal.Decimal {
	if ab.Kind == AccountCreditCard {
		return ab.ClosingBalance.Abs().Neg()
	}
	return ab.ClosingBalance
}

// Ledger is one user-defined accounting period with a single lifecycle from
// open to closed. At most one ledger per owner is open at any time; the
// storage layer enforces this with an atomic open-ledger claim.
type Ledger struct {
	ID     string       `json:"id"`
	UserID string       `json:"user_id"`
	Name   string       `json:"name"`
	Status LedgerStatus `json:"status"`

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// OpeningBalance is the aggregate signed sum across AccountBalances,
	// retained as a single number for backward compatibility.
	OpeningBalance decimal.Decimal `json:"opening_balance"`

	// ClosingBalance is the reported aggregate at close. It equals
	// ComputedClosingBalance unless the user supplied a manual override
	// reconciled against a real statement.
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`

	// ComputedClosingBalance is always the signed sum of per-account closing
	// balances at close time, kept separate so consumers can detect override
	// divergence.
	ComputedClosingBalance *decimal.Decimal `json:"computed_closing_balance,omitempty"`

	AccountBalances []AccountBalance `json:"account_balances"`

	// Version guards read-modify-write cycles on the AccountBalances cache.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen returns true while the ledger accepts mutations.
func (l *Ledger) IsOpen() bool {
	return l.Status == LedgerOpen
}

// FindAccountBalance returns the balance entry for accountID, or nil when the
// account is not part of this ledger's opening configuration.
func (l *Ledger) FindAccountBalance(accountID string) *AccountBalance {
	for i := range l.AccountBalances {
		if l.AccountBalances[i].AccountID == accountID {
			return &l.AccountBalances[i]
		}
	}
	return nil
}

// AggregateOpening computes the signed aggregate opening balance:
// sum(bank openings) − sum(|creditCard openings|).
func (l *Ledger) AggregateOpening() decimal.Decimal {
	total := decimal.Zero
	for _, ab := range l.AccountBalances {
		total = total.Add(ab.SignedOpening())
	}
	return total
}

// AggregateClosing computes the signed aggregate closing balance across all
// account balance entries.
func (l *Ledger) AggregateClosing() decimal.Decimal {
	total := decimal.Zero
	for _, ab := range l.AccountBalances {
		total = total.Add(ab.SignedClosing())
	}
	return total
}

// LedgerMetrics is the read-only aggregation over a ledger's transaction set,
// all amounts normalized to the reporting currency.
type LedgerMetrics struct {
	LedgerID string `json:"ledger_id"`

	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`

	// TotalInvestment is the investment-classified subset of TotalExpenses,
	// not an additional bucket.
	TotalInvestment decimal.Decimal `json:"total_investment"`

	// ExpenseByChannel partitions TotalExpenses by payment channel tag.
	ExpenseByChannel map[PaymentChannel]decimal.Decimal `json:"expense_by_channel"`

	// IndicativeClosingWithCard deducts all expenses from opening + income.
	// IndicativeClosingExcludingCard leaves card-channel spend out of the
	// deduction, treating it as a deferred liability rather than an
	// immediate cash outflow.
	IndicativeClosingWithCard      decimal.Decimal `json:"indicative_closing_with_card"`
	IndicativeClosingExcludingCard decimal.Decimal `json:"indicative_closing_excluding_card"`

	// PerAccountClosing maps account id to recorded opening + income − expense
	// over valid (account-tagged) transactions for that account.
	PerAccountClosing map[string]decimal.Decimal `json:"per_account_closing"`

	TransactionCount int `json:"transaction_count"`
	OrphanCount      int `json:"orphan_count"`
}

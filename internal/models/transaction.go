package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TxIncome  TransactionType = "income"
	TxExpense TransactionType = "expense"
)

// ValidTransactionType returns true if t is a valid transaction type.
func ValidTransactionType(t TransactionType) bool {
	return t == TxIncome || t == TxExpense
}

// PaymentChannel tags how an expense was paid. Card-channel spend is a
// deferred liability; everything else is an immediate cash outflow.
type PaymentChannel string

const (
	ChannelWallet PaymentChannel = "wallet"
	ChannelCard   PaymentChannel = "card"
)

// NormalizeChannel maps an arbitrary channel tag onto wallet or card.
// Unknown and empty tags count as wallet (immediate outflow).
func NormalizeChannel(c PaymentChannel) PaymentChannel {
	if c == ChannelCard {
		return ChannelCard
	}
	return ChannelWallet
}

// CategoryInvestment is the category tag that classifies an expense as an
// investment for metric purposes.
const CategoryInvestment = "investment"

// IsInvestmentCategory reports whether a category tag is investment-classified.
func IsInvestmentCategory(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), CategoryInvestment)
}

// Transaction is a single income or expense event belonging to a ledger.
// Amount is an unsigned magnitude; Type carries the direction. AccountID may
// be empty ("orphan" transaction): included in ledger-wide totals, excluded
// from per-account reconciliation.
type Transaction struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	LedgerID string `json:"ledger_id"`

	AccountID string          `json:"account_id,omitempty"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`

	Category    string         `json:"category,omitempty"`
	Channel     PaymentChannel `json:"channel,omitempty"`
	Description string         `json:"description,omitempty"`

	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOrphan returns true when the transaction has no financial account.
func (t *Transaction) IsOrphan() bool {
	return strings.TrimSpace(t.AccountID) == ""
}

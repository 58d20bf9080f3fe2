// Package interfaces defines service contracts for Macrofin
package interfaces

import (
	"context"

	"github.com/rajkumarpandit/macrofin/internal/models"
)

// StorageManager coordinates all storage backends behind one driver.
type StorageManager interface {
	LedgerStore() LedgerStore
	TransactionStore() TransactionStore
	AccountStore() AccountStore
	RateStore() RateStore

	Close() error
}

// LedgerStore persists ledgers and enforces the at-most-one-open invariant.
type LedgerStore interface {
	// Create persists a new open ledger. The open-ledger claim for the owner
	// is taken atomically; a second concurrent Create for the same owner
	// fails with models.ErrLedgerAlreadyOpen.
	Create(ctx context.Context, ledger *models.Ledger) error

	// Get returns a ledger by id, scoped to its owner.
	// Missing ledgers yield models.ErrNotFound.
	Get(ctx context.Context, userID, ledgerID string) (*models.Ledger, error)

	// GetOpen returns the owner's open ledger, or (nil, nil) when none exists.
	GetOpen(ctx context.Context, userID string) (*models.Ledger, error)

	// List returns all ledgers for an owner, newest start date first.
	List(ctx context.Context, userID string) ([]*models.Ledger, error)

	// Update conditionally rewrites an open ledger. The write succeeds only
	// when the stored version equals expectedVersion and the stored status is
	// still open; otherwise models.ErrVersionConflict or
	// models.ErrInvalidLedgerState is returned and nothing is written.
	// On success the ledger's version is incremented.
	Update(ctx context.Context, ledger *models.Ledger, expectedVersion int) error

	// MarkClosed atomically transitions a ledger from open to closed with the
	// supplied final state and releases the owner's open-ledger claim. The
	// full closed state is computed by the caller before this single write.
	// A concurrent second close observes models.ErrInvalidLedgerState.
	MarkClosed(ctx context.Context, ledger *models.Ledger, expectedVersion int) error

	Close() error
}

// TransactionStore persists the append-only transaction log.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	Get(ctx context.Context, userID, id string) (*models.Transaction, error)
	Update(ctx context.Context, tx *models.Transaction) error
	Delete(ctx context.Context, userID, id string) error

	// ListByLedger returns every transaction belonging to a ledger, ordered
	// by date ascending. This is the source of truth for metric computation.
	ListByLedger(ctx context.Context, userID, ledgerID string) ([]*models.Transaction, error)

	Close() error
}

// AccountStore provides read access to the financial-account directory
// (bank accounts and credit cards). The ledger core only reads; Save exists
// for seeding and admin tooling.
type AccountStore interface {
	Get(ctx context.Context, userID, id string) (*models.FinancialAccount, error)
	List(ctx context.Context, userID string) ([]*models.FinancialAccount, error)
	Save(ctx context.Context, account *models.FinancialAccount) error

	Close() error
}

// RateStore persists the shared exchange-rate table snapshot.
type RateStore interface {
	// Get returns the stored table, or (nil, nil) when never fetched.
	Get(ctx context.Context) (*models.ExchangeRateTable, error)
	Save(ctx context.Context, table *models.ExchangeRateTable) error

	Close() error
}

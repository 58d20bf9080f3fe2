// Package surrealdb implements the storage interfaces on a SurrealDB
// document database.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/interfaces"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	ledgerStore      *LedgerStore
	transactionStore *TransactionStore
	accountStore     *AccountStore
	rateStore        *RateStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()
	sc := config.Storage.Surreal

	db, err := surrealdb.New(sc.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": sc.Username,
		"pass": sc.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, sc.Namespace, sc.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	m, err := NewManagerWithDB(db, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("address", sc.Address).
		Str("namespace", sc.Namespace).
		Str("database", sc.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// NewManagerWithDB wires the stores onto an existing connection. Used by
// tests that manage their own container connection.
func NewManagerWithDB(db *surrealdb.DB, logger *common.Logger) (*Manager, error) {
	ctx := context.Background()

	// Define tables to ensure they exist (SurrealDB v3 errors on querying
	// non-existent tables).
	tables := []string{"ledger", "open_ledger", "ledger_tx", "financial_account", "exchange_rates"}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	m := &Manager{
		db:     db,
		logger: logger,
	}

	m.ledgerStore = NewLedgerStore(db, logger)
	m.transactionStore = NewTransactionStore(db, logger)
	m.accountStore = NewAccountStore(db, logger)
	m.rateStore = NewRateStore(db, logger)

	return m, nil
}

func (m *Manager) LedgerStore() interfaces.LedgerStore {
	return m.ledgerStore
}

func (m *Manager) TransactionStore() interfaces.TransactionStore {
	return m.transactionStore
}

func (m *Manager) AccountStore() interfaces.AccountStore {
	return m.accountStore
}

func (m *Manager) RateStore() interfaces.RateStore {
	return m.rateStore
}

func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close(context.Background())
	}
	return nil
}

// isNotFoundError reports whether a SurrealDB error represents a missing
// record rather than a real failure.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no record")
}

// isAlreadyExistsError reports whether a SurrealDB CREATE failed because the
// record id is already taken.
func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "already contains")
}

package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// TransactionStore persists the transaction log in the "ledger_tx" table.
type TransactionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewTransactionStore(db *surrealdb.DB, logger *common.Logger) *TransactionStore {
	return &TransactionStore{
		db:     db,
		logger: logger,
	}
}

func txID(userID, id string) string {
	return userID + "_" + id
}

func (s *TransactionStore) Create(ctx context.Context, tx *models.Transaction) error {
	sql := "CREATE type::record('ledger_tx', $id) CONTENT $tx"
	vars := map[string]any{"id": txID(tx.UserID, tx.ID), "tx": tx}

	if _, err := surrealdb.Query[[]models.Transaction](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) Get(ctx context.Context, userID, id string) (*models.Transaction, error) {
	tx, err := surrealdb.Select[models.Transaction](ctx, s.db, surrealmodels.NewRecordID("ledger_tx", txID(userID, id)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("transaction '%s': %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select transaction: %w", err)
	}
	if tx == nil || tx.ID == "" {
		return nil, fmt.Errorf("transaction '%s': %w", id, models.ErrNotFound)
	}
	return tx, nil
}

func (s *TransactionStore) Update(ctx context.Context, tx *models.Transaction) error {
	sql := "UPSERT type::record('ledger_tx', $id) CONTENT $tx"
	vars := map[string]any{"id": txID(tx.UserID, tx.ID), "tx": tx}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Transaction](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to update transaction after retries: %w", lastErr)
}

func (s *TransactionStore) Delete(ctx context.Context, userID, id string) error {
	_, err := surrealdb.Delete[models.Transaction](ctx, s.db, surrealmodels.NewRecordID("ledger_tx", txID(userID, id)))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) ListByLedger(ctx context.Context, userID, ledgerID string) ([]*models.Transaction, error) {
	sql := "SELECT * FROM ledger_tx WHERE user_id = $user_id AND ledger_id = $ledger_id ORDER BY date ASC"
	vars := map[string]any{
		"user_id":   userID,
		"ledger_id": ledgerID,
	}

	results, err := surrealdb.Query[[]models.Transaction](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var mapped []*models.Transaction
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
	}
	return mapped, nil
}

func (s *TransactionStore) Close() error {
	return nil
}

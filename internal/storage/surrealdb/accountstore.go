package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// AccountStore reads the financial-account directory (bank accounts and
// credit cards) from the "financial_account" table.
type AccountStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewAccountStore(db *surrealdb.DB, logger *common.Logger) *AccountStore {
	return &AccountStore{
		db:     db,
		logger: logger,
	}
}

func accountID(userID, id string) string {
	return userID + "_" + id
}

func (s *AccountStore) Get(ctx context.Context, userID, id string) (*models.FinancialAccount, error) {
	acct, err := surrealdb.Select[models.FinancialAccount](ctx, s.db, surrealmodels.NewRecordID("financial_account", accountID(userID, id)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("account '%s': %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select account: %w", err)
	}
	if acct == nil || acct.ID == "" {
		return nil, fmt.Errorf("account '%s': %w", id, models.ErrNotFound)
	}
	return acct, nil
}

func (s *AccountStore) List(ctx context.Context, userID string) ([]*models.FinancialAccount, error) {
	sql := "SELECT * FROM financial_account WHERE user_id = $user_id ORDER BY name ASC"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]models.FinancialAccount](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	var mapped []*models.FinancialAccount
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
	}
	return mapped, nil
}

func (s *AccountStore) Save(ctx context.Context, account *models.FinancialAccount) error {
	sql := "UPSERT type::record('financial_account', $id) CONTENT $account"
	vars := map[string]any{"id": accountID(account.UserID, account.ID), "account": account}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.FinancialAccount](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save account after retries: %w", lastErr)
}

func (s *AccountStore) Close() error {
	return nil
}

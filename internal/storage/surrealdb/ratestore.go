package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// currentRatesID is the fixed record id for the single shared rate table.
const currentRatesID = "current"

// RateStore persists the exchange-rate table snapshot in "exchange_rates".
type RateStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewRateStore(db *surrealdb.DB, logger *common.Logger) *RateStore {
	return &RateStore{
		db:     db,
		logger: logger,
	}
}

func (s *RateStore) Get(ctx context.Context) (*models.ExchangeRateTable, error) {
	table, err := surrealdb.Select[models.ExchangeRateTable](ctx, s.db, surrealmodels.NewRecordID("exchange_rates", currentRatesID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select rate table: %w", err)
	}
	if table == nil || table.Base == "" {
		return nil, nil
	}
	return table, nil
}

func (s *RateStore) Save(ctx context.Context, table *models.ExchangeRateTable) error {
	sql := "UPSERT type::record('exchange_rates', $id) CONTENT $table"
	vars := map[string]any{"id": currentRatesID, "table": table}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.ExchangeRateTable](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save rate table after retries: %w", lastErr)
}

func (s *RateStore) Close() error {
	return nil
}

package interfaces

import (
	"context"

	"github.com/rajkumarpandit/macrofin/internal/models"
)

// RatesClient fetches the latest exchange-rate table from an external
// provider. Rates are expressed as units of base currency per one unit of
// each listed currency.
type RatesClient interface {
	FetchLatest(ctx context.Context, base string) (*models.ExchangeRateTable, error)
}

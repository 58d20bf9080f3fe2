package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRateTable maps a currency code to units of reporting currency per
// one unit of that currency. The table is a point-in-time snapshot: all
// conversions use the current table regardless of transaction date.
type ExchangeRateTable struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// Rate looks up the conversion rate for a currency code, case-insensitive.
func (t *ExchangeRateTable) Rate(code string) (decimal.Decimal, bool) {
	if t == nil || t.Rates == nil {
		return decimal.Zero, false
	}
	r, ok := t.Rates[strings.ToUpper(strings.TrimSpace(code))]
	return r, ok
}

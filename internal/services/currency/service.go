// Package currency normalizes transaction amounts into the reporting currency.
package currency

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/interfaces"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// reportingAliases maps informal tags users attach to amounts onto the ISO
// code of the reporting currency. Indian rupee entries arrive under several
// spellings in practice.
var reportingAliases = map[string]string{
	"RS":     "INR",
	"RS.":    "INR",
	"RUPEE":  "INR",
	"RUPEES": "INR",
	"₹":      "INR",
}

// Service converts foreign-currency amounts using a point-in-time rate table.
// Conversion never fails hard: an unknown currency passes the amount through
// unchanged and reports ok=false so callers can surface the gap.
type Service struct {
	logger    *common.Logger
	rateStore interfaces.RateStore
	client    interfaces.RatesClient
	reporting string

	mu    sync.RWMutex
	table *models.ExchangeRateTable
}

var _ interfaces.CurrencyService = (*Service)(nil)

// NewService creates the currency service. The client may be nil, in which
// case Refresh is unavailable and only a previously persisted table serves
// conversions.
func NewService(logger *common.Logger, reporting string, rateStore interfaces.RateStore, client interfaces.RatesClient) *Service {
	return &Service{
		logger:    logger,
		rateStore: rateStore,
		client:    client,
		reporting: strings.ToUpper(strings.TrimSpace(reporting)),
	}
}

// LoadStored primes the in-memory snapshot from the persisted table, if one
// exists. Called once at startup.
func (s *Service) LoadStored(ctx context.Context) error {
	table, err := s.rateStore.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored rate table: %w", err)
	}
	if table == nil {
		s.logger.Info().Msg("No stored exchange-rate table; conversions limited to reporting currency until refresh")
		return nil
	}

	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	s.logger.Info().
		Str("base", table.Base).
		Int("currencies", len(table.Rates)).
		Time("updated_at", table.UpdatedAt).
		Msg("Exchange-rate table loaded")
	return nil
}

// Refresh fetches a fresh rate table, persists it, and swaps the snapshot.
func (s *Service) Refresh(ctx context.Context) (*models.ExchangeRateTable, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no rates client configured: %w", models.ErrRateUnavailable)
	}

	table, err := s.client.FetchLatest(ctx, s.reporting)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates for %s: %w", s.reporting, err)
	}

	if err := s.rateStore.Save(ctx, table); err != nil {
		// The fetched table is still usable in memory.
		s.logger.Warn().Err(err).Msg("Failed to persist refreshed rate table")
	}

	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	s.logger.Info().
		Str("base", table.Base).
		Int("currencies", len(table.Rates)).
		Msg("Exchange-rate table refreshed")
	return table, nil
}

// Table returns the current snapshot, or nil when none is loaded.
func (s *Service) Table() *models.ExchangeRateTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// ReportingCurrency returns the ISO code everything normalizes to.
func (s *Service) ReportingCurrency() string {
	return s.reporting
}

// normalizeCode canonicalizes a currency tag: trimmed, uppercased, aliases
// resolved. An empty tag means the amount is already in reporting currency.
func (s *Service) normalizeCode(currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return s.reporting
	}
	if alias, ok := reportingAliases[code]; ok {
		return alias
	}
	return code
}

// ToReportingCurrency converts amount from the given currency using the
// current table. Amounts already in reporting currency pass through exactly.
// An unknown code returns the amount unchanged with ok=false.
func (s *Service) ToReportingCurrency(amount decimal.Decimal, currency string) (decimal.Decimal, bool) {
	code := s.normalizeCode(currency)
	if code == s.reporting {
		return amount, true
	}

	s.mu.RLock()
	table := s.table
	s.mu.RUnlock()

	rate, ok := table.Rate(code)
	if !ok {
		s.logger.Warn().
			Str("currency", code).
			Str("reporting", s.reporting).
			Msg("No exchange rate available; amount left unconverted")
		return amount, false
	}

	return amount.Mul(rate), true
}

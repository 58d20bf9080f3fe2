package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

type memRateStore struct {
	table *models.ExchangeRateTable
	err   error
}

func (m *memRateStore) Get(context.Context) (*models.ExchangeRateTable, error) {
	return m.table, m.err
}
func (m *memRateStore) Save(_ context.Context, table *models.ExchangeRateTable) error {
	m.table = table
	return m.err
}
func (m *memRateStore) Close() error { return nil }

type stubRatesClient struct {
	table *models.ExchangeRateTable
	err   error
	base  string
}

func (c *stubRatesClient) FetchLatest(_ context.Context, base string) (*models.ExchangeRateTable, error) {
	c.base = base
	return c.table, c.err
}

func usdTable() *models.ExchangeRateTable {
	return &models.ExchangeRateTable{
		Base: "INR",
		Rates: map[string]decimal.Decimal{
			"USD": decimal.RequireFromString("84.50"),
			"INR": decimal.NewFromInt(1),
		},
		UpdatedAt: time.Now(),
	}
}

func newTestService(store *memRateStore, client *stubRatesClient) *Service {
	// Avoid wrapping a nil *stubRatesClient in a non-nil interface value.
	if client == nil {
		return NewService(common.NewSilentLogger(), "inr", store, nil)
	}
	return NewService(common.NewSilentLogger(), "inr", store, client)
}

func TestToReportingCurrencyExact(t *testing.T) {
	svc := newTestService(&memRateStore{table: usdTable()}, nil)
	require.NoError(t, svc.LoadStored(context.Background()))

	// 100 USD at 84.50 is exactly 8450.00, no float drift.
	got, ok := svc.ToReportingCurrency(decimal.NewFromInt(100), "USD")
	require.True(t, ok)
	assert.True(t, got.Equal(decimal.RequireFromString("8450.00")), "got %s", got)
}

func TestToReportingCurrencyAccumulationIsExact(t *testing.T) {
	svc := newTestService(&memRateStore{}, nil)

	paisa := decimal.RequireFromString("0.01")
	total := decimal.Zero
	for i := 0; i < 10000; i++ {
		converted, ok := svc.ToReportingCurrency(paisa, "INR")
		require.True(t, ok)
		total = total.Add(converted)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(100)), "got %s", total)
}

func TestToReportingCurrencyAliases(t *testing.T) {
	svc := newTestService(&memRateStore{}, nil)

	for _, tag := range []string{"INR", "inr", "Rs", "rupees", "₹", "", "  INR  "} {
		got, ok := svc.ToReportingCurrency(decimal.NewFromInt(500), tag)
		require.True(t, ok, "tag %q", tag)
		assert.True(t, got.Equal(decimal.NewFromInt(500)), "tag %q", tag)
	}
}

func TestToReportingCurrencyUnknownCodePassesThrough(t *testing.T) {
	svc := newTestService(&memRateStore{table: usdTable()}, nil)
	require.NoError(t, svc.LoadStored(context.Background()))

	amount := decimal.RequireFromString("42.42")
	got, ok := svc.ToReportingCurrency(amount, "CHF")
	assert.False(t, ok)
	assert.True(t, got.Equal(amount))
}

func TestToReportingCurrencyNoTableLoaded(t *testing.T) {
	svc := newTestService(&memRateStore{}, nil)

	// Reporting-currency amounts still convert without any table.
	got, ok := svc.ToReportingCurrency(decimal.NewFromInt(10), "INR")
	require.True(t, ok)
	assert.True(t, got.Equal(decimal.NewFromInt(10)))

	// Foreign amounts pass through unconverted.
	_, ok = svc.ToReportingCurrency(decimal.NewFromInt(10), "USD")
	assert.False(t, ok)
}

func TestRefreshPersistsAndSwapsTable(t *testing.T) {
	store := &memRateStore{}
	client := &stubRatesClient{table: usdTable()}
	svc := newTestService(store, client)

	table, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Equal(t, "INR", client.base)
	assert.NotNil(t, store.table)
	assert.Same(t, table, svc.Table())

	got, ok := svc.ToReportingCurrency(decimal.NewFromInt(2), "usd")
	require.True(t, ok)
	assert.True(t, got.Equal(decimal.NewFromInt(169)))
}

func TestRefreshWithoutClient(t *testing.T) {
	svc := newTestService(&memRateStore{}, nil)

	_, err := svc.Refresh(context.Background())
	require.ErrorIs(t, err, models.ErrRateUnavailable)
}

func TestRefreshClientFailure(t *testing.T) {
	client := &stubRatesClient{err: errors.New("provider down")}
	svc := newTestService(&memRateStore{}, client)

	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.Nil(t, svc.Table())
}

package surrealdb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"

	"github.com/rajkumarpandit/macrofin/internal/models"
)

func seedLedger(userID, id string) *models.Ledger {
	now := time.Now()
	return &models.Ledger{
		ID:        id,
		UserID:    userID,
		Name:      "August 2026",
		Status:    models.LedgerOpen,
		StartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		AccountBalances: []models.AccountBalance{
			{
				AccountID:      "hdfc",
				AccountName:    "HDFC Savings",
				Kind:           models.AccountBank,
				OpeningBalance: decimal.NewFromInt(50000),
				ClosingBalance: decimal.NewFromInt(50000),
			},
		},
		OpeningBalance: decimal.NewFromInt(50000),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestLedgerStoreSingleOpen(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.LedgerStore()

	require.NoError(t, store.Create(ctx, seedLedger("alice", "aug")))

	err := store.Create(ctx, seedLedger("alice", "sep"))
	require.ErrorIs(t, err, models.ErrLedgerAlreadyOpen)

	require.NoError(t, store.Create(ctx, seedLedger("bob", "aug")))
}

func TestLedgerStoreConcurrentCreate(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.LedgerStore()

	// Concurrent starts race on the open-ledger claim; exactly one wins.
	const racers = 4
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Create(ctx, seedLedger("alice", fmt.Sprintf("aug-%d", i)))
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, models.ErrLedgerAlreadyOpen)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestLedgerStoreStaleClaimRepaired(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.LedgerStore()

	ledger := seedLedger("alice", "aug")
	require.NoError(t, store.Create(ctx, ledger))
	require.NoError(t, store.MarkClosed(ctx, ledger, ledger.Version))

	// Re-insert the claim against the now-closed ledger, as if the close's
	// claim delete had failed.
	seedClaim := func() {
		sql := "CREATE type::record('open_ledger', $id) CONTENT $claim"
		vars := map[string]any{"id": "alice", "claim": openClaim{
			UserID:    "alice",
			LedgerID:  "aug",
			ClaimedAt: time.Now(),
		}}
		_, err := surrealdb.Query[[]openClaim](ctx, m.db, sql, vars)
		require.NoError(t, err)
	}
	seedClaim()

	// GetOpen notices the claimed ledger is closed, releases the claim and
	// reports no open ledger.
	open, err := store.GetOpen(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, open)

	// Create repairs the stale claim on its own and succeeds.
	seedClaim()
	require.NoError(t, store.Create(ctx, seedLedger("alice", "sep")))

	open, err = store.GetOpen(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "sep", open.ID)

	// A claim backed by a genuinely open ledger is never released.
	err = store.Create(ctx, seedLedger("alice", "oct"))
	require.ErrorIs(t, err, models.ErrLedgerAlreadyOpen)
}

func TestLedgerStoreGetAndList(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.LedgerStore()

	_, err := store.Get(ctx, "alice", "missing")
	require.ErrorIs(t, err, models.ErrNotFound)

	open, err := store.GetOpen(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, open)

	old := seedLedger("alice", "jul")
	old.StartDate = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, old))
	require.NoError(t, store.MarkClosed(ctx, old, old.Version))

	require.NoError(t, store.Create(ctx, seedLedger("alice", "aug")))

	open, err = store.GetOpen(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "aug", open.ID)

	ledgers, err := store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, ledgers, 2)
	assert.Equal(t, "aug", ledgers[0].ID)
	assert.Equal(t, "jul", ledgers[1].ID)
}

func TestLedgerStoreConditionalUpdate(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.LedgerStore()

	ledger := seedLedger("alice", "aug")
	require.NoError(t, store.Create(ctx, ledger))

	ledger.AccountBalances[0].ClosingBalance = decimal.NewFromInt(51000)
	require.NoError(t, store.Update(ctx, ledger, 1))
	assert.Equal(t, 2, ledger.Version)

	// A writer holding the old version loses.
	stale := seedLedger("alice", "aug")
	err := store.Update(ctx, stale, 1)
	require.ErrorIs(t, err, models.ErrVersionConflict)

	got, err := store.Get(ctx, "alice", "aug")
	require.NoError(t, err)
	assert.True(t, got.AccountBalances[0].ClosingBalance.Equal(decimal.NewFromInt(51000)))
}

func TestLedgerStoreMarkClosed(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.LedgerStore()

	ledger := seedLedger("alice", "aug")
	require.NoError(t, store.Create(ctx, ledger))

	endDate := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	ledger.EndDate = &endDate
	closing := decimal.NewFromInt(52000)
	ledger.ClosingBalance = &closing
	ledger.ComputedClosingBalance = &closing

	require.NoError(t, store.MarkClosed(ctx, ledger, 1))

	// The second close observes the state transition, not a silent race.
	err := store.MarkClosed(ctx, ledger, ledger.Version)
	require.ErrorIs(t, err, models.ErrInvalidLedgerState)

	// The claim is released so the next period can open.
	require.NoError(t, store.Create(ctx, seedLedger("alice", "sep")))
}

func TestTransactionStoreLifecycle(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.TransactionStore()

	early := &models.Transaction{
		ID:       "tx-early",
		UserID:   "alice",
		LedgerID: "aug",
		Type:     models.TxIncome,
		Amount:   decimal.NewFromInt(90000),
		Currency: "INR",
		Date:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	late := &models.Transaction{
		ID:        "tx-late",
		UserID:    "alice",
		LedgerID:  "aug",
		AccountID: "hdfc",
		Type:      models.TxExpense,
		Amount:    decimal.NewFromInt(1250),
		Currency:  "INR",
		Channel:   models.ChannelCard,
		Date:      time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Create(ctx, late))
	require.NoError(t, store.Create(ctx, early))

	list, err := store.ListByLedger(ctx, "alice", "aug")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "tx-early", list[0].ID)
	assert.Equal(t, "tx-late", list[1].ID)

	late.Amount = decimal.NewFromInt(1500)
	require.NoError(t, store.Update(ctx, late))
	got, err := store.Get(ctx, "alice", "tx-late")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(1500)))

	require.NoError(t, store.Delete(ctx, "alice", "tx-late"))
	_, err = store.Get(ctx, "alice", "tx-late")
	require.ErrorIs(t, err, models.ErrNotFound)

	// Another user's log is invisible.
	list, err = store.ListByLedger(ctx, "bob", "aug")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAccountStoreDirectory(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.AccountStore()

	require.NoError(t, store.Save(ctx, &models.FinancialAccount{
		ID: "card", UserID: "alice", Name: "ICICI Card", Kind: models.AccountCreditCard,
	}))
	require.NoError(t, store.Save(ctx, &models.FinancialAccount{
		ID: "bank", UserID: "alice", Name: "HDFC Savings", Kind: models.AccountBank, IsDefault: true,
	}))

	accounts, err := store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "HDFC Savings", accounts[0].Name)

	got, err := store.Get(ctx, "alice", "card")
	require.NoError(t, err)
	assert.Equal(t, models.AccountCreditCard, got.Kind)
}

func TestRateStoreRoundTrip(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	store := m.RateStore()

	table, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, table)

	require.NoError(t, store.Save(ctx, &models.ExchangeRateTable{
		Base: "INR",
		Rates: map[string]decimal.Decimal{
			"USD": decimal.RequireFromString("84.50"),
			"EUR": decimal.RequireFromString("91.20"),
		},
		UpdatedAt: time.Now(),
	}))

	table, err = store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, table)
	rate, ok := table.Rate("usd")
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.RequireFromString("84.50")))
}

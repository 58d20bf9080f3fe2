package balance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// fakeLedgerStore is an in-memory LedgerStore with real version checking, so
// the optimistic retry path can be exercised deterministically.
type fakeLedgerStore struct {
	ledgers map[string]*models.Ledger

	// conflictsLeft forces that many ErrVersionConflict results before
	// Update succeeds, simulating a concurrent writer.
	conflictsLeft int
	updateCalls   int
}

func newFakeLedgerStore(ledgers ...*models.Ledger) *fakeLedgerStore {
	m := make(map[string]*models.Ledger)
	for _, l := range ledgers {
		copied := *l
		m[l.UserID+"/"+l.ID] = &copied
	}
	return &fakeLedgerStore{ledgers: m}
}

func (f *fakeLedgerStore) Create(_ context.Context, ledger *models.Ledger) error {
	copied := *ledger
	f.ledgers[ledger.UserID+"/"+ledger.ID] = &copied
	return nil
}

func (f *fakeLedgerStore) Get(_ context.Context, userID, id string) (*models.Ledger, error) {
	l, ok := f.ledgers[userID+"/"+id]
	if !ok {
		return nil, fmt.Errorf("ledger '%s': %w", id, models.ErrNotFound)
	}
	copied := *l
	copied.AccountBalances = append([]models.AccountBalance(nil), l.AccountBalances...)
	return &copied, nil
}

func (f *fakeLedgerStore) GetOpen(_ context.Context, userID string) (*models.Ledger, error) {
	for _, l := range f.ledgers {
		if l.UserID == userID && l.IsOpen() {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeLedgerStore) List(_ context.Context, userID string) ([]*models.Ledger, error) {
	var out []*models.Ledger
	for _, l := range f.ledgers {
		if l.UserID == userID {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeLedgerStore) Update(_ context.Context, ledger *models.Ledger, expectedVersion int) error {
	f.updateCalls++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		// Bump the stored version the way a racing writer would.
		stored := f.ledgers[ledger.UserID+"/"+ledger.ID]
		stored.Version++
		return fmt.Errorf("ledger '%s': %w", ledger.ID, models.ErrVersionConflict)
	}
	stored, ok := f.ledgers[ledger.UserID+"/"+ledger.ID]
	if !ok {
		return fmt.Errorf("ledger '%s': %w", ledger.ID, models.ErrNotFound)
	}
	if !stored.IsOpen() {
		return fmt.Errorf("ledger '%s': %w", ledger.ID, models.ErrInvalidLedgerState)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("ledger '%s': %w", ledger.ID, models.ErrVersionConflict)
	}
	copied := *ledger
	copied.Version = expectedVersion + 1
	f.ledgers[ledger.UserID+"/"+ledger.ID] = &copied
	ledger.Version = copied.Version
	return nil
}

func (f *fakeLedgerStore) MarkClosed(ctx context.Context, ledger *models.Ledger, expectedVersion int) error {
	ledger.Status = models.LedgerClosed
	return f.Update(ctx, ledger, expectedVersion)
}

func (f *fakeLedgerStore) Close() error { return nil }

func openLedger() *models.Ledger {
	return &models.Ledger{
		ID:     "aug",
		UserID: "default",
		Name:   "August 2026",
		Status: models.LedgerOpen,
		AccountBalances: []models.AccountBalance{
			{
				AccountID:      "b1",
				Kind:           models.AccountBank,
				OpeningBalance: decimal.NewFromInt(1000),
				ClosingBalance: decimal.NewFromInt(1000),
			},
			{
				AccountID:      "c1",
				Kind:           models.AccountCreditCard,
				OpeningBalance: decimal.NewFromInt(-200),
				ClosingBalance: decimal.NewFromInt(-200),
			},
		},
		Version:   1,
		StartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestApplyDeltaIncomeThenExpense(t *testing.T) {
	store := newFakeLedgerStore(openLedger())
	svc := NewService(common.NewSilentLogger(), store)
	ctx := context.Background()

	got, err := svc.ApplyDelta(ctx, "aug", "b1", decimal.NewFromInt(500), models.TxIncome)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ClosingBalance.Equal(decimal.NewFromInt(1500)))

	got, err = svc.ApplyDelta(ctx, "aug", "b1", decimal.NewFromInt(150), models.TxExpense)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ClosingBalance.Equal(decimal.NewFromInt(1350)))

	// The other account is untouched.
	ledger, err := store.Get(ctx, "default", "aug")
	require.NoError(t, err)
	assert.True(t, ledger.FindAccountBalance("c1").ClosingBalance.Equal(decimal.NewFromInt(-200)))
}

func TestApplyDeltaOrphanIsNoOp(t *testing.T) {
	store := newFakeLedgerStore(openLedger())
	svc := NewService(common.NewSilentLogger(), store)

	got, err := svc.ApplyDelta(context.Background(), "aug", "", decimal.NewFromInt(500), models.TxIncome)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, store.updateCalls)
}

func TestApplyDeltaUnregisteredAccountIsNoOp(t *testing.T) {
	store := newFakeLedgerStore(openLedger())
	svc := NewService(common.NewSilentLogger(), store)

	got, err := svc.ApplyDelta(context.Background(), "aug", "not-in-ledger", decimal.NewFromInt(500), models.TxIncome)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, store.updateCalls)
}

func TestApplyDeltaClosedLedger(t *testing.T) {
	ledger := openLedger()
	ledger.Status = models.LedgerClosed
	store := newFakeLedgerStore(ledger)
	svc := NewService(common.NewSilentLogger(), store)

	_, err := svc.ApplyDelta(context.Background(), "aug", "b1", decimal.NewFromInt(500), models.TxIncome)
	require.ErrorIs(t, err, models.ErrInvalidLedgerState)
}

func TestApplyDeltaRetriesVersionConflict(t *testing.T) {
	store := newFakeLedgerStore(openLedger())
	store.conflictsLeft = 2
	svc := NewService(common.NewSilentLogger(), store)

	got, err := svc.ApplyDelta(context.Background(), "aug", "b1", decimal.NewFromInt(100), models.TxIncome)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ClosingBalance.Equal(decimal.NewFromInt(1100)))
	assert.Equal(t, 3, store.updateCalls)
}

func TestApplyDeltaExhaustsRetries(t *testing.T) {
	store := newFakeLedgerStore(openLedger())
	store.conflictsLeft = maxRetries
	svc := NewService(common.NewSilentLogger(), store)

	_, err := svc.ApplyDelta(context.Background(), "aug", "b1", decimal.NewFromInt(100), models.TxIncome)
	require.ErrorIs(t, err, models.ErrVersionConflict)
}

func TestReverseDeltaUndoesApply(t *testing.T) {
	store := newFakeLedgerStore(openLedger())
	svc := NewService(common.NewSilentLogger(), store)
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, "aug", "b1", decimal.NewFromInt(250), models.TxExpense)
	require.NoError(t, err)

	got, err := svc.ReverseDelta(ctx, "aug", "b1", decimal.NewFromInt(250), models.TxExpense)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ClosingBalance.Equal(decimal.NewFromInt(1000)))
}

func TestApplyDeltaMissingLedger(t *testing.T) {
	store := newFakeLedgerStore()
	svc := NewService(common.NewSilentLogger(), store)

	_, err := svc.ApplyDelta(context.Background(), "nope", "b1", decimal.NewFromInt(1), models.TxIncome)
	require.ErrorIs(t, err, models.ErrNotFound)
}

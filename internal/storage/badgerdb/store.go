// Package badgerdb implements the storage interfaces on an embedded
// BadgerHold database for single-process deployments.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/interfaces"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// keySep is the composite key separator. Using a null byte prevents
// collisions when user or record ids contain "_" or ":" characters.
const keySep = "\x00"

// Store implements every storage interface on a single BadgerHold database.
// A process-level mutex serializes ledger read-modify-write cycles; the
// embedded driver is single-process so this is equivalent to the document
// database's conditional writes.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger

	mu sync.Mutex // guards ledger claim/update/close sequences
}

// NewStore opens (or creates) the embedded database at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badgerdb path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badgerdb at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("Embedded ledger store opened")
	return &Store{db: db, logger: logger}, nil
}

func ledgerKey(userID, id string) string  { return "ledger" + keySep + userID + keySep + id }
func claimKey(userID string) string       { return "open" + keySep + userID }
func txKey(userID, id string) string      { return "tx" + keySep + userID + keySep + id }
func accountKey(userID, id string) string { return "account" + keySep + userID + keySep + id }

const ratesKey = "rates" + keySep + "current"

// openClaim marks a user's single open ledger. Insert on a taken key fails
// with badgerhold.ErrKeyExists, giving the same atomicity as the document
// database's CREATE.
type openClaim struct {
	UserID     string
	LedgerID   string
	LedgerName string
	ClaimedAt  time.Time
}

// --- LedgerStore ---

func (s *Store) Create(_ context.Context, ledger *models.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.createLocked(ledger)
	if errors.Is(err, models.ErrLedgerAlreadyOpen) && s.repairStaleClaimLocked(ledger.UserID) {
		// The blocking claim pointed at a closed or missing ledger; retry
		// once now that the slot is free.
		err = s.createLocked(ledger)
	}
	return err
}

func (s *Store) createLocked(ledger *models.Ledger) error {
	claim := openClaim{
		UserID:     ledger.UserID,
		LedgerID:   ledger.ID,
		LedgerName: ledger.Name,
		ClaimedAt:  time.Now(),
	}
	if err := s.db.Insert(claimKey(ledger.UserID), &claim); err != nil {
		if err == badgerhold.ErrKeyExists {
			return models.ErrLedgerAlreadyOpen
		}
		return fmt.Errorf("failed to claim open ledger slot: %w", err)
	}

	if err := s.db.Insert(ledgerKey(ledger.UserID, ledger.ID), ledger); err != nil {
		// Roll the claim back; if the delete fails too, the dangling claim is
		// repaired by GetOpen or the next Create.
		if derr := s.db.Delete(claimKey(ledger.UserID), openClaim{}); derr != nil && derr != badgerhold.ErrNotFound {
			s.logger.Warn().Err(derr).Str("user_id", ledger.UserID).Msg("Failed to release open ledger claim")
		}
		return fmt.Errorf("failed to create ledger: %w", err)
	}

	s.logger.Info().
		Str("user_id", ledger.UserID).
		Str("ledger_id", ledger.ID).
		Str("name", ledger.Name).
		Msg("Ledger created")
	return nil
}

func (s *Store) Get(_ context.Context, userID, id string) (*models.Ledger, error) {
	var ledger models.Ledger
	if err := s.db.Get(ledgerKey(userID, id), &ledger); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("ledger '%s': %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return &ledger, nil
}

func (s *Store) GetOpen(ctx context.Context, userID string) (*models.Ledger, error) {
	var claim openClaim
	if err := s.db.Get(claimKey(userID), &claim); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open ledger claim: %w", err)
	}

	ledger, err := s.Get(ctx, userID, claim.LedgerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.releaseStaleClaim(userID)
			return nil, nil
		}
		return nil, err
	}
	if !ledger.IsOpen() {
		// A close wrote the ledger but failed to delete the claim; release
		// it here so the user is not reported as having an open ledger.
		s.releaseStaleClaim(userID)
		return nil, nil
	}
	return ledger, nil
}

func (s *Store) releaseStaleClaim(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repairStaleClaimLocked(userID)
}

// repairStaleClaimLocked removes a claim whose ledger is closed or gone,
// which happens when a close updated the ledger but the claim delete failed.
// Returns true when the slot is free for a new claim. Caller holds s.mu.
func (s *Store) repairStaleClaimLocked(userID string) bool {
	var claim openClaim
	if err := s.db.Get(claimKey(userID), &claim); err != nil {
		return err == badgerhold.ErrNotFound
	}

	var ledger models.Ledger
	err := s.db.Get(ledgerKey(userID, claim.LedgerID), &ledger)
	if err == nil && ledger.IsOpen() {
		return false
	}
	if err != nil && err != badgerhold.ErrNotFound {
		return false
	}

	if derr := s.db.Delete(claimKey(userID), openClaim{}); derr != nil && derr != badgerhold.ErrNotFound {
		s.logger.Warn().Err(derr).Str("user_id", userID).Msg("Failed to release stale open ledger claim")
		return false
	}
	s.logger.Warn().
		Str("user_id", userID).
		Str("ledger_id", claim.LedgerID).
		Msg("Released stale open ledger claim")
	return true
}

func (s *Store) List(_ context.Context, userID string) ([]*models.Ledger, error) {
	var all []models.Ledger
	if err := s.db.Find(&all, badgerhold.Where("UserID").Eq(userID)); err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].StartDate.After(all[j].StartDate)
	})

	result := make([]*models.Ledger, 0, len(all))
	for i := range all {
		result = append(result, &all[i])
	}
	return result, nil
}

func (s *Store) Update(ctx context.Context, ledger *models.Ledger, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, ledger.UserID, ledger.ID)
	if err != nil {
		return err
	}
	if !current.IsOpen() {
		return fmt.Errorf("ledger '%s' is %s: %w", ledger.ID, current.Status, models.ErrInvalidLedgerState)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("ledger '%s': %w", ledger.ID, models.ErrVersionConflict)
	}

	updated := *ledger
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = time.Now()

	if err := s.db.Update(ledgerKey(ledger.UserID, ledger.ID), &updated); err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	*ledger = updated
	return nil
}

func (s *Store) MarkClosed(ctx context.Context, ledger *models.Ledger, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, ledger.UserID, ledger.ID)
	if err != nil {
		return err
	}
	if !current.IsOpen() {
		return fmt.Errorf("ledger '%s' is %s: %w", ledger.ID, current.Status, models.ErrInvalidLedgerState)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("ledger '%s': %w", ledger.ID, models.ErrVersionConflict)
	}

	closed := *ledger
	closed.Status = models.LedgerClosed
	closed.Version = expectedVersion + 1
	closed.UpdatedAt = time.Now()

	if err := s.db.Update(ledgerKey(ledger.UserID, ledger.ID), &closed); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err := s.db.Delete(claimKey(ledger.UserID), openClaim{}); err != nil && err != badgerhold.ErrNotFound {
		s.logger.Warn().Err(err).Str("user_id", ledger.UserID).Msg("Failed to release open ledger claim")
	}

	*ledger = closed
	s.logger.Info().
		Str("user_id", ledger.UserID).
		Str("ledger_id", ledger.ID).
		Str("name", ledger.Name).
		Msg("Ledger closed")
	return nil
}

// --- TransactionStore ---

func (s *Store) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	if err := s.db.Insert(txKey(tx.UserID, tx.ID), tx); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.Get(txKey(userID, id), &tx); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("transaction '%s': %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx *models.Transaction) error {
	if err := s.db.Upsert(txKey(tx.UserID, tx.ID), tx); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	if err := s.db.Delete(txKey(userID, id), models.Transaction{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (s *Store) ListByLedger(_ context.Context, userID, ledgerID string) ([]*models.Transaction, error) {
	var all []models.Transaction
	query := badgerhold.Where("UserID").Eq(userID).And("LedgerID").Eq(ledgerID)
	if err := s.db.Find(&all, query); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Date.Before(all[j].Date)
	})

	result := make([]*models.Transaction, 0, len(all))
	for i := range all {
		result = append(result, &all[i])
	}
	return result, nil
}

// --- AccountStore ---

func (s *Store) GetAccount(_ context.Context, userID, id string) (*models.FinancialAccount, error) {
	var acct models.FinancialAccount
	if err := s.db.Get(accountKey(userID, id), &acct); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("account '%s': %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acct, nil
}

func (s *Store) ListAccounts(_ context.Context, userID string) ([]*models.FinancialAccount, error) {
	var all []models.FinancialAccount
	if err := s.db.Find(&all, badgerhold.Where("UserID").Eq(userID)); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})

	result := make([]*models.FinancialAccount, 0, len(all))
	for i := range all {
		result = append(result, &all[i])
	}
	return result, nil
}

func (s *Store) SaveAccount(_ context.Context, account *models.FinancialAccount) error {
	if err := s.db.Upsert(accountKey(account.UserID, account.ID), account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// --- RateStore ---

func (s *Store) GetRates(_ context.Context) (*models.ExchangeRateTable, error) {
	var table models.ExchangeRateTable
	if err := s.db.Get(ratesKey, &table); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rate table: %w", err)
	}
	return &table, nil
}

func (s *Store) SaveRates(_ context.Context, table *models.ExchangeRateTable) error {
	if err := s.db.Upsert(ratesKey, table); err != nil {
		return fmt.Errorf("failed to save rate table: %w", err)
	}
	return nil
}

// Close shuts down the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- interface adapters ---

// ledgerView/txView/accountView/rateView expose the shared Store through the
// narrow storage interfaces so it plugs into interfaces.StorageManager.

type ledgerView struct{ *Store }

func (v ledgerView) Close() error { return nil }

type txView struct{ *Store }

func (v txView) Create(ctx context.Context, tx *models.Transaction) error {
	return v.CreateTransaction(ctx, tx)
}
func (v txView) Get(ctx context.Context, userID, id string) (*models.Transaction, error) {
	return v.GetTransaction(ctx, userID, id)
}
func (v txView) Update(ctx context.Context, tx *models.Transaction) error {
	return v.UpdateTransaction(ctx, tx)
}
func (v txView) Delete(ctx context.Context, userID, id string) error {
	return v.DeleteTransaction(ctx, userID, id)
}
func (v txView) Close() error { return nil }

type accountView struct{ *Store }

func (v accountView) Get(ctx context.Context, userID, id string) (*models.FinancialAccount, error) {
	return v.GetAccount(ctx, userID, id)
}
func (v accountView) List(ctx context.Context, userID string) ([]*models.FinancialAccount, error) {
	return v.ListAccounts(ctx, userID)
}
func (v accountView) Save(ctx context.Context, account *models.FinancialAccount) error {
	return v.SaveAccount(ctx, account)
}
func (v accountView) Close() error { return nil }

type rateView struct{ *Store }

func (v rateView) Get(ctx context.Context) (*models.ExchangeRateTable, error) {
	return v.GetRates(ctx)
}
func (v rateView) Save(ctx context.Context, table *models.ExchangeRateTable) error {
	return v.SaveRates(ctx, table)
}
func (v rateView) Close() error { return nil }

// Manager implements interfaces.StorageManager over the shared Store.
type Manager struct {
	store *Store
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager opens the embedded database and wraps it in a StorageManager.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := NewStore(logger, config.Storage.Badger.Path)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store}, nil
}

// NewManagerWithStore wraps an existing store. Used by tests.
func NewManagerWithStore(store *Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) LedgerStore() interfaces.LedgerStore           { return ledgerView{m.store} }
func (m *Manager) TransactionStore() interfaces.TransactionStore { return txView{m.store} }
func (m *Manager) AccountStore() interfaces.AccountStore         { return accountView{m.store} }
func (m *Manager) RateStore() interfaces.RateStore               { return rateView{m.store} }

func (m *Manager) Close() error {
	return m.store.Close()
}

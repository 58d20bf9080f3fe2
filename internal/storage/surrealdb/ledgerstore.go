package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// LedgerStore persists ledgers in the "ledger" table. The at-most-one-open
// invariant is enforced by a companion "open_ledger" claim record keyed by
// user id: CREATE on a taken id fails atomically inside the database, which
// closes the check-then-act race two concurrent StartLedger calls would
// otherwise win together.
type LedgerStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewLedgerStore(db *surrealdb.DB, logger *common.Logger) *LedgerStore {
	return &LedgerStore{
		db:     db,
		logger: logger,
	}
}

// openClaim is the open-ledger marker record, one per user while a ledger is open.
type openClaim struct {
	UserID     string    `json:"user_id"`
	LedgerID   string    `json:"ledger_id"`
	LedgerName string    `json:"ledger_name"`
	ClaimedAt  time.Time `json:"claimed_at"`
}

func ledgerID(userID, id string) string {
	return userID + "_" + id
}

func (s *LedgerStore) Create(ctx context.Context, ledger *models.Ledger) error {
	err := s.create(ctx, ledger)
	if errors.Is(err, models.ErrLedgerAlreadyOpen) && s.repairStaleClaim(ctx, ledger.UserID) {
		// The blocking claim pointed at a closed or missing ledger; retry
		// once now that the slot is free.
		err = s.create(ctx, ledger)
	}
	return err
}

func (s *LedgerStore) create(ctx context.Context, ledger *models.Ledger) error {
	claim := openClaim{
		UserID:     ledger.UserID,
		LedgerID:   ledger.ID,
		LedgerName: ledger.Name,
		ClaimedAt:  time.Now(),
	}

	// Atomic claim first: a second concurrent Create for the same user fails
	// here, before any ledger record exists.
	sql := "CREATE type::record('open_ledger', $id) CONTENT $claim"
	vars := map[string]any{"id": ledger.UserID, "claim": claim}
	if _, err := surrealdb.Query[[]openClaim](ctx, s.db, sql, vars); err != nil {
		if isAlreadyExistsError(err) {
			return models.ErrLedgerAlreadyOpen
		}
		return fmt.Errorf("failed to claim open ledger slot: %w", err)
	}

	sql = "CREATE type::record('ledger', $id) CONTENT $ledger"
	vars = map[string]any{"id": ledgerID(ledger.UserID, ledger.ID), "ledger": ledger}
	if _, err := surrealdb.Query[[]models.Ledger](ctx, s.db, sql, vars); err != nil {
		// Roll the claim back so the user is not locked out of starting a ledger.
		s.releaseClaim(ctx, ledger.UserID)
		return fmt.Errorf("failed to create ledger: %w", err)
	}

	s.logger.Info().
		Str("user_id", ledger.UserID).
		Str("ledger_id", ledger.ID).
		Str("name", ledger.Name).
		Msg("Ledger created")
	return nil
}

func (s *LedgerStore) Get(ctx context.Context, userID, id string) (*models.Ledger, error) {
	ledger, err := surrealdb.Select[models.Ledger](ctx, s.db, surrealmodels.NewRecordID("ledger", ledgerID(userID, id)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("ledger '%s': %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select ledger: %w", err)
	}
	if ledger == nil || ledger.ID == "" {
		return nil, fmt.Errorf("ledger '%s': %w", id, models.ErrNotFound)
	}
	return ledger, nil
}

func (s *LedgerStore) GetOpen(ctx context.Context, userID string) (*models.Ledger, error) {
	claim, err := surrealdb.Select[openClaim](ctx, s.db, surrealmodels.NewRecordID("open_ledger", userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select open ledger claim: %w", err)
	}
	if claim == nil || claim.LedgerID == "" {
		return nil, nil
	}

	ledger, err := s.Get(ctx, userID, claim.LedgerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.releaseClaim(ctx, userID)
			return nil, nil
		}
		return nil, err
	}
	if !ledger.IsOpen() {
		// A close wrote the ledger but failed to delete the claim; release
		// it here so the user is not reported as having an open ledger.
		s.releaseClaim(ctx, userID)
		return nil, nil
	}
	return ledger, nil
}

func (s *LedgerStore) List(ctx context.Context, userID string) ([]*models.Ledger, error) {
	sql := "SELECT * FROM ledger WHERE user_id = $user_id ORDER BY start_date DESC"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]models.Ledger](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}

	var mapped []*models.Ledger
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
	}
	return mapped, nil
}

func (s *LedgerStore) Update(ctx context.Context, ledger *models.Ledger, expectedVersion int) error {
	updated := *ledger
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = time.Now()

	sql := "UPDATE type::record('ledger', $id) CONTENT $ledger WHERE version = $expected AND status = 'open' RETURN AFTER"
	vars := map[string]any{
		"id":       ledgerID(ledger.UserID, ledger.ID),
		"ledger":   &updated,
		"expected": expectedVersion,
	}

	results, err := surrealdb.Query[[]models.Ledger](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return s.diagnoseConflict(ctx, ledger.UserID, ledger.ID)
	}

	*ledger = updated
	return nil
}

func (s *LedgerStore) MarkClosed(ctx context.Context, ledger *models.Ledger, expectedVersion int) error {
	closed := *ledger
	closed.Status = models.LedgerClosed
	closed.Version = expectedVersion + 1
	closed.UpdatedAt = time.Now()

	// Single conditional write: the full closed state is computed by the
	// caller before anything is written, so a failed transition leaves no
	// partial mutation behind.
	sql := "UPDATE type::record('ledger', $id) CONTENT $ledger WHERE version = $expected AND status = 'open' RETURN AFTER"
	vars := map[string]any{
		"id":       ledgerID(ledger.UserID, ledger.ID),
		"ledger":   &closed,
		"expected": expectedVersion,
	}

	results, err := surrealdb.Query[[]models.Ledger](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return s.diagnoseConflict(ctx, ledger.UserID, ledger.ID)
	}

	s.releaseClaim(ctx, ledger.UserID)
	*ledger = closed

	s.logger.Info().
		Str("user_id", ledger.UserID).
		Str("ledger_id", ledger.ID).
		Str("name", ledger.Name).
		Msg("Ledger closed")
	return nil
}

// diagnoseConflict explains why a conditional write matched no record:
// missing ledger, already-closed ledger, or a plain version race.
func (s *LedgerStore) diagnoseConflict(ctx context.Context, userID, id string) error {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if !current.IsOpen() {
		return fmt.Errorf("ledger '%s' is %s: %w", id, current.Status, models.ErrInvalidLedgerState)
	}
	return fmt.Errorf("ledger '%s': %w", id, models.ErrVersionConflict)
}

// repairStaleClaim removes a claim whose ledger is closed or gone, which
// happens when a close updated the ledger but the claim delete failed.
// Returns true when the slot is free for a new claim.
func (s *LedgerStore) repairStaleClaim(ctx context.Context, userID string) bool {
	claim, err := surrealdb.Select[openClaim](ctx, s.db, surrealmodels.NewRecordID("open_ledger", userID))
	if err != nil {
		return isNotFoundError(err)
	}
	if claim == nil || claim.LedgerID == "" {
		return true
	}

	ledger, err := s.Get(ctx, userID, claim.LedgerID)
	if err == nil && ledger.IsOpen() {
		return false
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return false
	}

	s.logger.Warn().
		Str("user_id", userID).
		Str("ledger_id", claim.LedgerID).
		Msg("Released stale open ledger claim")
	s.releaseClaim(ctx, userID)
	return true
}

// releaseClaim deletes the open-ledger marker. Best effort: a dangling claim
// is repaired by GetOpen or the next Create when the claimed ledger turns out
// to be closed or missing.
func (s *LedgerStore) releaseClaim(ctx context.Context, userID string) {
	if _, err := surrealdb.Delete[openClaim](ctx, s.db, surrealmodels.NewRecordID("open_ledger", userID)); err != nil && !isNotFoundError(err) {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to release open ledger claim")
	}
}

func (s *LedgerStore) Close() error {
	return nil
}

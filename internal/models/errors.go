package models

import "errors"

// Sentinel errors for ledger lifecycle operations. Callers classify with
// errors.Is; services wrap these with operation detail via fmt.Errorf("%w").
var (
	// ErrLedgerAlreadyOpen is returned by StartLedger when the owner already
	// has a ledger in the open state.
	ErrLedgerAlreadyOpen = errors.New("a ledger is already open")

	// ErrInvalidLedgerState is returned when an operation targets a ledger
	// that does not exist or is not in the required state (e.g. closing an
	// already-closed ledger).
	ErrInvalidLedgerState = errors.New("invalid ledger state")

	// ErrInvalidAccountConfiguration is returned when an opening configuration
	// contains no valid account balance entries.
	ErrInvalidAccountConfiguration = errors.New("invalid account configuration")

	// ErrRateUnavailable flags a currency with no entry in the exchange-rate
	// table. Non-fatal: the unconverted amount is used and the condition is
	// logged.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrBalanceCacheMiss flags a transaction referencing an account that is
	// not part of the ledger's opening configuration. Non-fatal no-op.
	ErrBalanceCacheMiss = errors.New("account not registered in ledger")

	// ErrVersionConflict is returned by conditional ledger writes when the
	// stored version no longer matches. Callers re-read and retry.
	ErrVersionConflict = errors.New("ledger version conflict")

	// ErrNotFound is the generic storage-level missing-record error.
	ErrNotFound = errors.New("not found")
)

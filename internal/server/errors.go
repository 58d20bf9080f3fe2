package server

import (
	"errors"
	"net/http"

	"github.com/rajkumarpandit/macrofin/internal/clients/fxrates"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// writeServiceError maps the core error taxonomy onto HTTP status codes. The
// wrapped message travels to the client so a rejected operation explains why.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrLedgerAlreadyOpen):
		WriteErrorWithCode(w, http.StatusConflict, err.Error(), "ledger_already_open")
	case errors.Is(err, models.ErrVersionConflict):
		WriteErrorWithCode(w, http.StatusConflict, err.Error(), "version_conflict")
	case errors.Is(err, models.ErrInvalidLedgerState):
		WriteErrorWithCode(w, http.StatusUnprocessableEntity, err.Error(), "invalid_ledger_state")
	case errors.Is(err, models.ErrInvalidAccountConfiguration):
		WriteErrorWithCode(w, http.StatusUnprocessableEntity, err.Error(), "invalid_account_configuration")
	case errors.Is(err, models.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, models.ErrRateUnavailable):
		WriteErrorWithCode(w, http.StatusServiceUnavailable, err.Error(), "rate_unavailable")
	case errors.As(err, new(*fxrates.APIError)):
		WriteErrorWithCode(w, http.StatusBadGateway, err.Error(), "rates_provider_error")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

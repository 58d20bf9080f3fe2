package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// handleAccounts handles GET (list) and POST (save) on /api/accounts. The
// ledger core only reads the directory; POST exists for seeding and admin
// tooling.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := s.app.Storage.AccountStore().List(r.Context(), common.ResolveUserID(r.Context()))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, accounts)

	case http.MethodPost:
		var account models.FinancialAccount
		if !DecodeJSON(w, r, &account) {
			return
		}
		if account.Name == "" {
			WriteError(w, http.StatusBadRequest, "Account name is required")
			return
		}
		if !models.ValidAccountKind(account.Kind) {
			account.Kind = models.AccountBank
		}
		if account.ID == "" {
			account.ID = uuid.NewString()
		}
		account.UserID = common.ResolveUserID(r.Context())
		if err := s.app.Storage.AccountStore().Save(r.Context(), &account); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, account)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleRates handles GET /api/rates.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	table := s.app.CurrencyService.Table()
	if table == nil {
		WriteErrorWithCode(w, http.StatusNotFound, "no exchange-rate table loaded", "not_found")
		return
	}
	WriteJSON(w, http.StatusOK, table)
}

// handleRatesRefresh handles POST /api/rates/refresh.
func (s *Server) handleRatesRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	table, err := s.app.CurrencyService.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, table)
}

package server

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rajkumarpandit/macrofin/internal/interfaces"
	"github.com/rajkumarpandit/macrofin/internal/models"
)

// startLedgerRequest is the POST /api/ledgers body.
type startLedgerRequest struct {
	Name            string                  `json:"name"`
	StartDate       time.Time               `json:"start_date"`
	AccountBalances []models.AccountBalance `json:"account_balances"`
	CarryForward    bool                    `json:"carry_forward"`
}

// updateOpeningRequest is the PUT /api/ledgers/{id}/opening body.
type updateOpeningRequest struct {
	AccountBalances []models.AccountBalance `json:"account_balances"`
	StartDate       time.Time               `json:"start_date"`
}

// closeLedgerRequest is the POST /api/ledgers/{id}/close body. Override, when
// present, becomes the reported closing balance (reconciled against a real
// statement); the computed figure is stored alongside it regardless.
type closeLedgerRequest struct {
	ClosingDate time.Time        `json:"closing_date"`
	Override    *decimal.Decimal `json:"closing_balance_override"`
}

// handleLedgers handles GET (list) and POST (start) on /api/ledgers.
func (s *Server) handleLedgers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ledgers, err := s.app.LedgerService.ListLedgers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ledgers)

	case http.MethodPost:
		var req startLedgerRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		ledger, err := s.app.LedgerService.StartLedger(r.Context(), interfaces.StartLedgerParams{
			Name:            req.Name,
			StartDate:       req.StartDate,
			AccountBalances: req.AccountBalances,
			CarryForward:    req.CarryForward,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ledger)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleLedgerOpen handles GET /api/ledgers/open.
func (s *Server) handleLedgerOpen(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ledger, err := s.app.LedgerService.GetOpenLedger(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ledger == nil {
		WriteErrorWithCode(w, http.StatusNotFound, "no open ledger", "not_found")
		return
	}
	WriteJSON(w, http.StatusOK, ledger)
}

// handleLedgerGet handles GET /api/ledgers/{id}.
func (s *Server) handleLedgerGet(w http.ResponseWriter, r *http.Request, ledgerID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ledger, err := s.app.LedgerService.GetLedger(r.Context(), ledgerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ledger)
}

// handleLedgerOpening handles PUT /api/ledgers/{id}/opening.
func (s *Server) handleLedgerOpening(w http.ResponseWriter, r *http.Request, ledgerID string) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}
	var req updateOpeningRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	ledger, err := s.app.LedgerService.UpdateOpeningDetails(r.Context(), ledgerID, req.AccountBalances, req.StartDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ledger)
}

// handleLedgerClose handles POST /api/ledgers/{id}/close.
func (s *Server) handleLedgerClose(w http.ResponseWriter, r *http.Request, ledgerID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	req := closeLedgerRequest{}
	// An empty body closes as of now with no override.
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}
	ledger, err := s.app.LedgerService.CloseLedger(r.Context(), ledgerID, req.ClosingDate, req.Override)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ledger)
}

// handleLedgerMetrics handles GET /api/ledgers/{id}/metrics.
func (s *Server) handleLedgerMetrics(w http.ResponseWriter, r *http.Request, ledgerID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	metrics, err := s.app.LedgerService.ComputeMetrics(r.Context(), ledgerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, metrics)
}

// handleLedgerTransactions handles GET /api/ledgers/{id}/transactions.
func (s *Server) handleLedgerTransactions(w http.ResponseWriter, r *http.Request, ledgerID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	txs, err := s.app.TransactionService.ListByLedger(r.Context(), ledgerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, txs)
}

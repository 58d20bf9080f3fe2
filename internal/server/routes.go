package server

import (
	"net/http"
	"strings"

	"github.com/rajkumarpandit/macrofin/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Auth
	mux.HandleFunc("/api/auth/token", s.handleAuthToken)

	// Ledgers
	mux.HandleFunc("/api/ledgers/open", s.handleLedgerOpen)
	mux.HandleFunc("/api/ledgers/", s.routeLedgers)
	mux.HandleFunc("/api/ledgers", s.handleLedgers)

	// Transactions
	mux.HandleFunc("/api/transactions/", s.routeTransactions)
	mux.HandleFunc("/api/transactions", s.handleTransactionCreate)

	// Accounts
	mux.HandleFunc("/api/accounts", s.handleAccounts)

	// Exchange rates
	mux.HandleFunc("/api/rates/refresh", s.handleRatesRefresh)
	mux.HandleFunc("/api/rates", s.handleRates)
}

// routeLedgers dispatches /api/ledgers/{id}[/...] paths.
func (s *Server) routeLedgers(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case strings.HasSuffix(path, "/close"):
		s.handleLedgerClose(w, r, PathParam(r, "/api/ledgers/", "/close"))
	case strings.HasSuffix(path, "/opening"):
		s.handleLedgerOpening(w, r, PathParam(r, "/api/ledgers/", "/opening"))
	case strings.HasSuffix(path, "/metrics"):
		s.handleLedgerMetrics(w, r, PathParam(r, "/api/ledgers/", "/metrics"))
	case strings.HasSuffix(path, "/transactions"):
		s.handleLedgerTransactions(w, r, PathParam(r, "/api/ledgers/", "/transactions"))
	default:
		id := PathParam(r, "/api/ledgers/", "")
		if id == "" || id != strings.TrimPrefix(path, "/api/ledgers/") {
			WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		s.handleLedgerGet(w, r, id)
	}
}

// routeTransactions dispatches /api/transactions/{id}.
func (s *Server) routeTransactions(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "/api/transactions/", "")
	if id == "" || id != strings.TrimPrefix(r.URL.Path, "/api/transactions/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		s.handleTransactionUpdate(w, r, id)
	case http.MethodDelete:
		s.handleTransactionDelete(w, r, id)
	default:
		RequireMethod(w, r, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

package server

import (
	"net/http"

	"github.com/rajkumarpandit/macrofin/internal/models"
)

// handleTransactionCreate handles POST /api/transactions.
func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var tx models.Transaction
	if !DecodeJSON(w, r, &tx) {
		return
	}
	created, err := s.app.TransactionService.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// handleTransactionUpdate handles PUT/PATCH /api/transactions/{id}.
func (s *Server) handleTransactionUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var update models.Transaction
	if !DecodeJSON(w, r, &update) {
		return
	}
	updated, err := s.app.TransactionService.UpdateTransaction(r.Context(), id, update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// handleTransactionDelete handles DELETE /api/transactions/{id}.
func (s *Server) handleTransactionDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.app.TransactionService.DeleteTransaction(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

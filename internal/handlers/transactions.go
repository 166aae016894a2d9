package handlers

import (
	"net/http"

	"sacco/internal/services"
	"sacco/internal/store"
	"sacco/internal/validator"
)

type transferRequest struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountID     string `json:"to_account_id"`
	ToAccountNumber string `json:"to_account_number"`
	Amount          string `json:"amount"`
	Description     string `json:"description"`
}

// Transfer moves funds between two accounts. The destination may be named by
// id or by account number.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if req.FromAccountID == "" {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	if req.ToAccountID == "" && validator.ValidateAccountNumber(req.ToAccountNumber) != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	result, err := h.ledger.Transfer(r.Context(), caller, services.TransferRequest{
		FromAccountID:   req.FromAccountID,
		ToAccountID:     req.ToAccountID,
		ToAccountNumber: req.ToAccountNumber,
		Amount:          amount,
		Description:     req.Description,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":     "transfer completed",
		"transfer_id": result.TransferID,
	})
}

// ListTransactions pages through the caller's transactions. Admins see every
// member's, optionally narrowed with ?user_id=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	userID := caller.UserID
	if caller.IsAdmin() {
		userID = query.Get("user_id")
	}
	limit, offset := pagination(query.Get("page"), query.Get("limit"), 50)
	rows, err := h.transactions.List(r.Context(), store.TransactionFilter{
		UserID: userID,
		Type:   query.Get("type"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transactionViews(rows))
}

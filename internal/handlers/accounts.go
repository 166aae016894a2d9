package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"sacco/internal/models"
	"sacco/internal/money"
	"sacco/internal/services"
	"sacco/internal/store"

	"github.com/go-chi/chi/v5"
)

// ListAccounts returns the caller's own account as a one-element list.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.accounts.GetByUser(r.Context(), caller.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSON(w, http.StatusOK, []any{})
			return
		}
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, []any{accountJSON(account)})
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.visibleAccount(r, caller, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accountJSON(account))
}

func (h *Handler) AccountTransactions(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.visibleAccount(r, caller, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	limit, offset := pagination(r.URL.Query().Get("page"), r.URL.Query().Get("limit"), 50)
	rows, err := h.transactions.List(r.Context(), store.TransactionFilter{
		AccountID: account.ID,
		Type:      r.URL.Query().Get("type"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transactionViews(rows))
}

type ledgerRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.ledger.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.ledger.Withdraw)
}

type ledgerOp func(ctx context.Context, caller services.Caller, accountID string, amount int64, description string) (services.LedgerResult, error)

func (h *Handler) moveFunds(w http.ResponseWriter, r *http.Request, op ledgerOp) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ledgerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := op(r.Context(), caller, chi.URLParam(r, "id"), amount, req.Description)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"transaction": transactionJSON(result.Transaction),
		"balance":     money.FormatMinor(result.Balance),
	})
}

// SelfCheck compares the caller's stored balance with the sum of their
// transaction rows.
func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	checks, err := h.accounts.CheckBalance(r.Context(), caller.UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceChecks(checks))
}

// visibleAccount loads an account the caller may see. Members asking for an
// account that does not exist get the same answer as for someone else's.
func (h *Handler) visibleAccount(r *http.Request, caller services.Caller, accountID string) (models.Account, error) {
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if caller.IsAdmin() {
				return models.Account{}, services.ErrNotFound
			}
			return models.Account{}, services.ErrUnauthorized
		}
		return models.Account{}, err
	}
	if !caller.IsAdmin() && !account.OwnedBy(caller.UserID) {
		return models.Account{}, services.ErrUnauthorized
	}
	return account, nil
}

func transactionViews(rows []store.TransactionView) []map[string]any {
	payload := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		payload = append(payload, transactionViewJSON(row))
	}
	return payload
}

func balanceChecks(checks []store.AccountBalanceCheck) []map[string]any {
	payload := make([]map[string]any, 0, len(checks))
	for _, check := range checks {
		payload = append(payload, map[string]any{
			"account_id":     check.AccountID,
			"account_number": check.AccountNumber,
			"user_id":        derefString(check.UserID),
			"stored_balance": money.FormatMinor(check.StoredBalance),
			"ledger_sum":     money.FormatMinor(check.LedgerSum),
			"difference":     money.FormatMinor(check.Difference),
			"consistent":     check.Difference == 0,
		})
	}
	return payload
}

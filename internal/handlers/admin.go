package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"sacco/internal/auth"
	"sacco/internal/middleware"
	"sacco/internal/money"
	"sacco/internal/websocket"
)

func (h *Handler) AdminListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAllWithUsers(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		row := accountJSON(account.Account)
		row["user_name"] = derefString(account.UserName)
		row["user_email"] = derefString(account.UserEmail)
		payload = append(payload, row)
	}
	respondJSON(w, http.StatusOK, payload)
}

type createAccountRequest struct {
	UserID         string `json:"user_id"`
	InitialDeposit string `json:"initial_deposit"`
}

// AdminCreateAccount opens an account for a user who has none, or an
// unowned one when user_id is omitted. A non-empty initial_deposit is
// posted in the same unit of work that creates the account.
func (h *Handler) AdminCreateAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	var initial int64
	if req.InitialDeposit != "" {
		amount, err := parseAmountMinor(req.InitialDeposit)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		initial = amount
	}

	var owner *string
	if req.UserID != "" {
		if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
			respondServiceError(w, r, err)
			return
		}
		_, err := h.accounts.GetByUser(r.Context(), req.UserID)
		switch {
		case err == nil:
			respondError(w, http.StatusConflict, "account_exists")
			return
		case !errors.Is(err, sql.ErrNoRows):
			respondServiceError(w, r, err)
			return
		}
		owner = &req.UserID
	}

	account, err := h.ledger.OpenAccount(r.Context(), caller, owner, initial)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, accountJSON(account))
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset := pagination(query.Get("page"), query.Get("limit"), 50)
	logs, err := h.audit.List(r.Context(), query.Get("entity_type"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// Reconcile lists accounts whose stored balance disagrees with the signed
// sum of their transactions. An empty list means the ledger is consistent.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	mismatches, err := h.accounts.Reconcile(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	var drift int64
	for _, mismatch := range mismatches {
		drift += mismatch.Difference
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent": len(mismatches) == 0,
		"drift":      money.FormatMinor(drift),
		"accounts":   balanceChecks(mismatches),
	})
}

// WSBalances upgrades to a websocket that streams the caller's balance
// changes. Browsers cannot set headers on the handshake, so the token may
// also arrive as ?token=.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}

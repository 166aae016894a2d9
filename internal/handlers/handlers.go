package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"sacco/internal/db"
	"sacco/internal/loancalc"
	"sacco/internal/middleware"
	"sacco/internal/models"
	"sacco/internal/money"
	"sacco/internal/services"
	"sacco/internal/store"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code string) {
	respondJSON(w, status, map[string]string{"error": code})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func callerFrom(r *http.Request) (services.Caller, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return services.Caller{}, false
	}
	return services.Caller{UserID: userID, Role: middleware.RoleFromContext(r.Context())}, true
}

// respondServiceError maps domain errors to status codes. Anything it does
// not recognise is logged and reported as a 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		respondError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, loancalc.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_input")
	case errors.Is(err, services.ErrSameAccount):
		respondError(w, http.StatusBadRequest, "same_account")
	case errors.Is(err, services.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, "insufficient_funds")
	case errors.Is(err, services.ErrInvalidCode):
		respondError(w, http.StatusBadRequest, "invalid_code")
	case errors.Is(err, services.ErrInvalidLoanState):
		respondError(w, http.StatusConflict, "invalid_loan_state")
	case errors.Is(err, db.ErrConflict):
		respondError(w, http.StatusConflict, "conflict")
	default:
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

func userJSON(user models.User) map[string]any {
	return map[string]any{
		"id":             user.ID,
		"name":           user.Name,
		"email":          user.Email,
		"role":           user.Role,
		"email_verified": user.EmailVerified,
		"created_at":     user.CreatedAt,
	}
}

func accountJSON(account models.Account) map[string]any {
	return map[string]any{
		"id":             account.ID,
		"account_number": account.AccountNumber,
		"balance":        money.FormatMinor(account.Balance),
		"user_id":        derefString(account.UserID),
		"created_at":     account.CreatedAt,
	}
}

func transactionJSON(tx models.Transaction) map[string]any {
	return map[string]any{
		"id":          tx.ID,
		"type":        tx.Type,
		"amount":      money.FormatMinor(tx.Amount),
		"description": tx.Description,
		"account_id":  tx.AccountID,
		"user_id":     derefString(tx.UserID),
		"loan_id":     derefString(tx.LoanID),
		"transfer_id": derefString(tx.TransferID),
		"created_at":  tx.CreatedAt,
	}
}

func transactionViewJSON(row store.TransactionView) map[string]any {
	return map[string]any{
		"id":             row.ID,
		"type":           row.Type,
		"amount":         money.FormatMinor(row.Amount),
		"description":    row.Description,
		"account_id":     row.AccountID,
		"account_number": row.AccountNumber,
		"owner_name":     derefString(row.OwnerName),
		"user_id":        derefString(row.UserID),
		"loan_id":        derefString(row.LoanID),
		"transfer_id":    derefString(row.TransferID),
		"created_at":     row.CreatedAt,
	}
}

func loanJSON(loan models.Loan) map[string]any {
	return map[string]any{
		"id":            loan.ID,
		"amount":        money.FormatMinor(loan.Amount),
		"interest_rate": loan.InterestRate.String(),
		"term_months":   loan.TermMonths,
		"status":        loan.Status,
		"purpose":       loan.Purpose,
		"account_id":    loan.AccountID,
		"user_id":       loan.UserID,
		"due_date":      loan.DueDate,
		"approved_by":   derefString(loan.ApprovedBy),
		"approved_at":   loan.ApprovedAt,
		"disbursed_at":  loan.DisbursedAt,
		"created_at":    loan.CreatedAt,
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

package handlers

import (
	"net/http"

	"sacco/internal/loancalc"
	"sacco/internal/money"
	"sacco/internal/services"
	"sacco/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type applyLoanRequest struct {
	Amount       string `json:"amount"`
	Term         int    `json:"term"`
	InterestRate string `json:"interest_rate"`
	Purpose      string `json:"purpose"`
}

func (h *Handler) ApplyLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req applyLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	rate, err := parseRate(req.InterestRate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	loan, err := h.loans.Apply(r.Context(), caller, services.LoanApplication{
		Amount:       amount,
		TermMonths:   req.Term,
		InterestRate: rate,
		Purpose:      req.Purpose,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, loanJSON(loan))
}

// ListLoans serves both /loans and /admin/loans. The service scopes members
// to their own loans; ?user_id= and ?status= only narrow an admin's view.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	loans, err := h.loans.List(r.Context(), caller, r.URL.Query().Get("user_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	payload := make([]map[string]any, 0, len(loans))
	for _, loan := range loans {
		if status != "" && string(loan.Status) != status {
			continue
		}
		payload = append(payload, loanWithOwnerJSON(loan))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	loan, err := h.loans.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	payload := loanJSON(loan)
	if plan, err := loancalc.Amortize(money.ToDecimal(loan.Amount), loan.InterestRate, loan.TermMonths); err == nil {
		payload["monthly_payment"] = plan.MonthlyPayment.StringFixedBank(2)
		payload["total_payment"] = plan.TotalPayment.StringFixedBank(2)
		payload["total_interest"] = plan.TotalInterest.StringFixedBank(2)
	}
	respondJSON(w, http.StatusOK, payload)
}

type calculateRequest struct {
	Principal  string `json:"principal"`
	AnnualRate string `json:"annual_rate"`
	TermMonths int    `json:"term_months"`
}

func (h *Handler) CalculateLoan(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	principal, err := decimal.NewFromString(req.Principal)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	rate, err := parseRate(req.AnnualRate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	plan, err := loancalc.Amortize(principal, rate, req.TermMonths)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (h *Handler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	loan, err := h.loans.Approve(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loanJSON(loan))
}

type rejectLoanRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req rejectLoanRequest
	if err := decodeJSON(r, &req); err != nil || req.Reason == "" {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	loan, err := h.loans.Reject(r.Context(), caller, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loanJSON(loan))
}

func (h *Handler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.loans.Disburse(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"loan":        loanJSON(result.Loan),
		"transaction": transactionJSON(result.Transaction),
		"balance":     money.FormatMinor(result.Balance),
	})
}

func loanWithOwnerJSON(loan store.LoanWithOwner) map[string]any {
	payload := loanJSON(loan.Loan)
	payload["user_name"] = loan.UserName
	payload["user_email"] = loan.UserEmail
	payload["account_number"] = loan.AccountNumber
	return payload
}

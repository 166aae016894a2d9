package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sacco/internal/db"
	"sacco/internal/loancalc"
	"sacco/internal/models"
	"sacco/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type LoanStore interface {
	Create(ctx context.Context, tx store.Getter, input store.LoanInput) (models.Loan, error)
	GetByID(ctx context.Context, loanID string) (models.Loan, error)
	GetForUpdate(ctx context.Context, tx store.Getter, loanID string) (models.Loan, error)
	List(ctx context.Context, userID string) ([]store.LoanWithOwner, error)
	Approve(ctx context.Context, tx store.Execer, loanID, approverID string, at time.Time) error
	Reject(ctx context.Context, tx store.Execer, loanID, purpose string) error
}

type OwnerAccountStore interface {
	GetByUser(ctx context.Context, userID string) (models.Account, error)
}

type LoanDisburser interface {
	DisburseLoan(ctx context.Context, caller Caller, loanID string) (DisbursementResult, error)
}

// LoanService drives PENDING -> APPROVED -> DISBURSED and PENDING -> REJECTED.
// Every transition re-reads the loan under a row lock before checking its state.
type LoanService struct {
	txRunner  db.TxRunner
	loans     LoanStore
	accounts  OwnerAccountStore
	audit     AuditStore
	disburser LoanDisburser
	now       func() time.Time
}

func NewLoanService(txRunner db.TxRunner, loans LoanStore, accounts OwnerAccountStore, audit AuditStore, disburser LoanDisburser) *LoanService {
	return &LoanService{
		txRunner:  txRunner,
		loans:     loans,
		accounts:  accounts,
		audit:     audit,
		disburser: disburser,
		now:       time.Now,
	}
}

type LoanApplication struct {
	Amount       int64
	TermMonths   int
	InterestRate decimal.Decimal
	Purpose      string
}

func (s *LoanService) Apply(ctx context.Context, caller Caller, app LoanApplication) (models.Loan, error) {
	if app.Amount <= 0 {
		return models.Loan{}, ErrInvalidAmount
	}
	if app.TermMonths <= 0 || app.TermMonths > loancalc.MaxTermMonths {
		return models.Loan{}, fmt.Errorf("%w: term must be between 1 and %d months", loancalc.ErrInvalidInput, loancalc.MaxTermMonths)
	}
	if app.InterestRate.IsNegative() {
		return models.Loan{}, fmt.Errorf("%w: interest rate must not be negative", loancalc.ErrInvalidInput)
	}
	account, err := s.accounts.GetByUser(ctx, caller.UserID)
	if err != nil {
		return models.Loan{}, notFound(err)
	}

	var loan models.Loan
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		loan, err = s.loans.Create(ctx, tx, store.LoanInput{
			ID:           uuid.NewString(),
			Amount:       app.Amount,
			InterestRate: app.InterestRate,
			TermMonths:   app.TermMonths,
			Purpose:      app.Purpose,
			AccountID:    account.ID,
			UserID:       caller.UserID,
			DueDate:      s.now().UTC().AddDate(0, app.TermMonths, 0),
		})
		if err != nil {
			return err
		}
		return s.log(ctx, tx, caller.UserID, "apply_loan", loan.ID, map[string]any{
			"amount":        app.Amount,
			"term_months":   app.TermMonths,
			"interest_rate": app.InterestRate.String(),
		})
	})
	if err != nil {
		return models.Loan{}, err
	}
	return loan, nil
}

func (s *LoanService) Get(ctx context.Context, caller Caller, loanID string) (models.Loan, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		err = notFound(err)
		if errors.Is(err, ErrNotFound) && !caller.IsAdmin() {
			return models.Loan{}, ErrUnauthorized
		}
		return models.Loan{}, err
	}
	if !caller.IsAdmin() && loan.UserID != caller.UserID {
		return models.Loan{}, ErrUnauthorized
	}
	return loan, nil
}

// List returns the caller's loans. Admins see everyone's, or one member's
// when userID is set.
func (s *LoanService) List(ctx context.Context, caller Caller, userID string) ([]store.LoanWithOwner, error) {
	if !caller.IsAdmin() {
		userID = caller.UserID
	}
	return s.loans.List(ctx, userID)
}

func (s *LoanService) Approve(ctx context.Context, caller Caller, loanID string) (models.Loan, error) {
	if !caller.IsAdmin() {
		return models.Loan{}, ErrUnauthorized
	}
	var loan models.Loan
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		loan, err = s.pending(ctx, tx, loanID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.loans.Approve(ctx, tx, loan.ID, caller.UserID, now); err != nil {
			return err
		}
		loan.Status = models.LoanApproved
		loan.ApprovedBy = &caller.UserID
		loan.ApprovedAt = &now
		return s.log(ctx, tx, caller.UserID, "approve_loan", loan.ID, map[string]any{"amount": loan.Amount})
	})
	if err != nil {
		return models.Loan{}, err
	}
	return loan, nil
}

func (s *LoanService) Reject(ctx context.Context, caller Caller, loanID, reason string) (models.Loan, error) {
	if !caller.IsAdmin() {
		return models.Loan{}, ErrUnauthorized
	}
	var loan models.Loan
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		loan, err = s.pending(ctx, tx, loanID)
		if err != nil {
			return err
		}
		purpose := rejectedPurpose(loan.Purpose, reason)
		if err := s.loans.Reject(ctx, tx, loan.ID, purpose); err != nil {
			return err
		}
		loan.Status = models.LoanRejected
		loan.Purpose = purpose
		return s.log(ctx, tx, caller.UserID, "reject_loan", loan.ID, map[string]any{"reason": reason})
	})
	if err != nil {
		return models.Loan{}, err
	}
	return loan, nil
}

// Disburse hands the approved loan to the ledger, which changes balance and
// status together.
func (s *LoanService) Disburse(ctx context.Context, caller Caller, loanID string) (DisbursementResult, error) {
	if !caller.IsAdmin() {
		return DisbursementResult{}, ErrUnauthorized
	}
	return s.disburser.DisburseLoan(ctx, caller, loanID)
}

func (s *LoanService) pending(ctx context.Context, tx *sqlx.Tx, loanID string) (models.Loan, error) {
	loan, err := s.loans.GetForUpdate(ctx, tx, loanID)
	if err != nil {
		return models.Loan{}, notFound(err)
	}
	if loan.Status != models.LoanPending {
		return models.Loan{}, ErrInvalidLoanState
	}
	return loan, nil
}

func (s *LoanService) log(ctx context.Context, tx *sqlx.Tx, actorID, action, loanID string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.audit.Log(ctx, tx, actorID, action, "loan", loanID, string(payload))
}

func rejectedPurpose(purpose, reason string) string {
	if purpose == "" {
		return "Rejection reason: " + reason
	}
	return purpose + "\n\nRejection reason: " + reason
}

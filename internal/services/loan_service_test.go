package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"sacco/internal/loancalc"
	"sacco/internal/models"
	"sacco/internal/store"

	"github.com/shopspring/decimal"
)

func newLoanService(loans LoanStore, accounts OwnerAccountStore, audit *stubAuditStore, disburser LoanDisburser) *LoanService {
	service := NewLoanService(fakeTxRunner{}, loans, accounts, audit, disburser)
	service.now = fixedNow
	return service
}

func pendingLoan() models.Loan {
	return models.Loan{ID: "loan-1", Amount: 100000, Status: models.LoanPending, Purpose: "Dairy cows", UserID: "user-1", AccountID: "acc-1"}
}

func TestApplyLoanValidation(t *testing.T) {
	service := newLoanService(stubLoanStore{}, stubAccountStore{}, &stubAuditStore{}, stubDisburser{})
	cases := []struct {
		name string
		app  LoanApplication
		want error
	}{
		{"zero amount", LoanApplication{Amount: 0, TermMonths: 12}, ErrInvalidAmount},
		{"zero term", LoanApplication{Amount: 100, TermMonths: 0}, loancalc.ErrInvalidInput},
		{"term too long", LoanApplication{Amount: 100, TermMonths: loancalc.MaxTermMonths + 1}, loancalc.ErrInvalidInput},
		{"negative rate", LoanApplication{Amount: 100, TermMonths: 12, InterestRate: decimal.NewFromInt(-1)}, loancalc.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Apply(context.Background(), member, tc.app); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestApplyLoanWithoutAccount(t *testing.T) {
	service := newLoanService(stubLoanStore{}, stubAccountStore{}, &stubAuditStore{}, stubDisburser{})
	_, err := service.Apply(context.Background(), member, LoanApplication{Amount: 100, TermMonths: 12})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyLoanSuccess(t *testing.T) {
	var created store.LoanInput
	audit := &stubAuditStore{}
	loans := stubLoanStore{
		createFn: func(_ context.Context, _ store.Getter, input store.LoanInput) (models.Loan, error) {
			created = input
			return models.Loan{ID: input.ID, Amount: input.Amount, Status: models.LoanPending, UserID: input.UserID}, nil
		},
	}
	accounts := stubAccountStore{
		getByUserFn: func(_ context.Context, userID string) (models.Account, error) {
			return models.Account{ID: "acc-1", UserID: &userID}, nil
		},
	}
	service := newLoanService(loans, accounts, audit, stubDisburser{})

	loan, err := service.Apply(context.Background(), member, LoanApplication{
		Amount: 100000, TermMonths: 12, InterestRate: decimal.RequireFromString("12.5"), Purpose: "Dairy cows",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != models.LoanPending {
		t.Fatalf("unexpected status %s", loan.Status)
	}
	if created.AccountID != "acc-1" || created.UserID != "user-1" || created.Purpose != "Dairy cows" {
		t.Fatalf("unexpected input: %#v", created)
	}
	if want := time.Date(2027, 3, 15, 9, 30, 0, 0, time.UTC); !created.DueDate.Equal(want) {
		t.Fatalf("expected due date %v, got %v", want, created.DueDate)
	}
	if len(audit.calls) != 1 || audit.calls[0].action != "apply_loan" {
		t.Fatalf("unexpected audit: %#v", audit.calls)
	}
}

func TestGetLoanAuthorization(t *testing.T) {
	loans := stubLoanStore{
		getByIDFn: func(_ context.Context, loanID string) (models.Loan, error) {
			if loanID != "loan-1" {
				return models.Loan{}, errors.New("unexpected id")
			}
			loan := pendingLoan()
			loan.UserID = "user-2"
			return loan, nil
		},
	}
	service := newLoanService(loans, stubAccountStore{}, &stubAuditStore{}, stubDisburser{})

	if _, err := service.Get(context.Background(), member, "loan-1"); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := service.Get(context.Background(), admin, "loan-1"); err != nil {
		t.Fatalf("admin should see any loan, got %v", err)
	}

	missing := newLoanService(stubLoanStore{}, stubAccountStore{}, &stubAuditStore{}, stubDisburser{})
	if _, err := missing.Get(context.Background(), member, "nope"); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for member, got %v", err)
	}
	if _, err := missing.Get(context.Background(), admin, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for admin, got %v", err)
	}
}

func TestListLoansScopesMembers(t *testing.T) {
	var requested []string
	loans := stubLoanStore{
		listFn: func(_ context.Context, userID string) ([]store.LoanWithOwner, error) {
			requested = append(requested, userID)
			return nil, nil
		},
	}
	service := newLoanService(loans, stubAccountStore{}, &stubAuditStore{}, stubDisburser{})

	_, _ = service.List(context.Background(), member, "user-2")
	_, _ = service.List(context.Background(), admin, "")
	_, _ = service.List(context.Background(), admin, "user-2")
	if len(requested) != 3 || requested[0] != "user-1" || requested[1] != "" || requested[2] != "user-2" {
		t.Fatalf("unexpected scopes: %#v", requested)
	}
}

func TestApproveLoan(t *testing.T) {
	var approver string
	var approvedAt time.Time
	audit := &stubAuditStore{}
	loans := stubLoanStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Loan, error) {
			return pendingLoan(), nil
		},
		approveFn: func(_ context.Context, _ store.Execer, _ string, approverID string, at time.Time) error {
			approver, approvedAt = approverID, at
			return nil
		},
	}
	service := newLoanService(loans, stubAccountStore{}, audit, stubDisburser{})

	loan, err := service.Approve(context.Background(), admin, "loan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != models.LoanApproved || *loan.ApprovedBy != "admin-1" || !loan.ApprovedAt.Equal(fixedNow()) {
		t.Fatalf("unexpected loan: %#v", loan)
	}
	if approver != "admin-1" || !approvedAt.Equal(fixedNow()) {
		t.Fatalf("unexpected store call: %s %v", approver, approvedAt)
	}
	if len(audit.calls) != 1 || audit.calls[0].action != "approve_loan" {
		t.Fatalf("unexpected audit: %#v", audit.calls)
	}
}

func TestLoanTransitionsRequireAdmin(t *testing.T) {
	loans := stubLoanStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Loan, error) {
			t.Fatalf("role must be checked before lookup")
			return models.Loan{}, nil
		},
	}
	service := newLoanService(loans, stubAccountStore{}, &stubAuditStore{}, stubDisburser{})

	if _, err := service.Approve(context.Background(), member, "loan-1"); err != ErrUnauthorized {
		t.Fatalf("approve: expected ErrUnauthorized, got %v", err)
	}
	if _, err := service.Reject(context.Background(), member, "loan-1", "no"); err != ErrUnauthorized {
		t.Fatalf("reject: expected ErrUnauthorized, got %v", err)
	}
	if _, err := service.Disburse(context.Background(), member, "loan-1"); err != ErrUnauthorized {
		t.Fatalf("disburse: expected ErrUnauthorized, got %v", err)
	}
}

func TestLoanTransitionsFromWrongState(t *testing.T) {
	for _, status := range []models.LoanStatus{models.LoanApproved, models.LoanRejected, models.LoanDisbursed} {
		loans := stubLoanStore{
			getForUpdateFn: func(context.Context, store.Getter, string) (models.Loan, error) {
				loan := pendingLoan()
				loan.Status = status
				return loan, nil
			},
			approveFn: func(context.Context, store.Execer, string, string, time.Time) error {
				t.Fatalf("unexpected approve")
				return nil
			},
			rejectFn: func(context.Context, store.Execer, string, string) error {
				t.Fatalf("unexpected reject")
				return nil
			},
		}
		service := newLoanService(loans, stubAccountStore{}, &stubAuditStore{}, stubDisburser{})
		if _, err := service.Approve(context.Background(), admin, "loan-1"); err != ErrInvalidLoanState {
			t.Fatalf("approve from %s: expected ErrInvalidLoanState, got %v", status, err)
		}
		if _, err := service.Reject(context.Background(), admin, "loan-1", "late"); err != ErrInvalidLoanState {
			t.Fatalf("reject from %s: expected ErrInvalidLoanState, got %v", status, err)
		}
	}
}

func TestRejectLoanAppendsReason(t *testing.T) {
	cases := []struct {
		purpose string
		want    string
	}{
		{"Dairy cows", "Dairy cows\n\nRejection reason: insufficient savings history"},
		{"", "Rejection reason: insufficient savings history"},
	}
	for _, tc := range cases {
		var stored string
		loans := stubLoanStore{
			getForUpdateFn: func(context.Context, store.Getter, string) (models.Loan, error) {
				loan := pendingLoan()
				loan.Purpose = tc.purpose
				return loan, nil
			},
			rejectFn: func(_ context.Context, _ store.Execer, _ string, purpose string) error {
				stored = purpose
				return nil
			},
		}
		service := newLoanService(loans, stubAccountStore{}, &stubAuditStore{}, stubDisburser{})
		loan, err := service.Reject(context.Background(), admin, "loan-1", "insufficient savings history")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if loan.Status != models.LoanRejected || loan.Purpose != tc.want || stored != tc.want {
			t.Fatalf("unexpected purpose %q / %q", loan.Purpose, stored)
		}
	}
}

func TestDisburseDelegatesToLedger(t *testing.T) {
	called := false
	disburser := stubDisburser{
		disburseFn: func(_ context.Context, caller Caller, loanID string) (DisbursementResult, error) {
			called = true
			if caller != admin || loanID != "loan-1" {
				t.Fatalf("unexpected call %v %s", caller, loanID)
			}
			return DisbursementResult{Balance: 100000}, nil
		},
	}
	service := newLoanService(stubLoanStore{}, stubAccountStore{}, &stubAuditStore{}, disburser)
	result, err := service.Disburse(context.Background(), admin, "loan-1")
	if err != nil || !called || result.Balance != 100000 {
		t.Fatalf("unexpected result %#v, %v", result, err)
	}
}

package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"sacco/internal/models"

	"github.com/shopspring/decimal"
)

func TestLoanStoreCreate(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	tx := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "INSERT INTO loans") || !strings.Contains(query, "RETURNING") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 8 || args[0] != "loan-1" || args[1] != int64(500000) || args[3] != 12 {
				t.Fatalf("unexpected args: %#v", args)
			}
			if rate, ok := args[2].(decimal.Decimal); !ok || !rate.Equal(decimal.NewFromInt(15)) {
				t.Fatalf("unexpected rate: %#v", args[2])
			}
			*dest.(*models.Loan) = models.Loan{ID: "loan-1", Status: models.LoanPending}
			return nil
		},
	}
	store := NewLoanStore(stubDB{})
	loan, err := store.Create(ctx, tx, LoanInput{
		ID: "loan-1", Amount: 500000, InterestRate: decimal.NewFromInt(15), TermMonths: 12,
		Purpose: "school fees", AccountID: "acc-1", UserID: "user-1", DueDate: due,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != models.LoanPending {
		t.Fatalf("unexpected loan: %#v", loan)
	}
}

func TestLoanStoreGetForUpdate(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM loans") || !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*models.Loan) = models.Loan{ID: "loan-1", Status: models.LoanApproved}
			return nil
		},
	}
	store := NewLoanStore(stubDB{})
	loan, err := store.GetForUpdate(ctx, getter, "loan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != models.LoanApproved {
		t.Fatalf("unexpected loan: %#v", loan)
	}
}

func TestLoanStoreListForUser(t *testing.T) {
	ctx := context.Background()
	store := NewLoanStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE l.user_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]LoanWithOwner) = []LoanWithOwner{{Loan: models.Loan{ID: "loan-1"}}}
			return nil
		},
	})
	rows, err := store.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "loan-1" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestLoanStoreListAll(t *testing.T) {
	ctx := context.Background()
	store := NewLoanStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if strings.Contains(query, "WHERE") || len(args) != 0 {
				t.Fatalf("unexpected query: %s %#v", query, args)
			}
			return nil
		},
	})
	if _, err := store.List(ctx, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoanStoreTransitions(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	var queries []string
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			queries = append(queries, query)
			return stubResult{rows: 1}, nil
		},
	}
	store := NewLoanStore(stubDB{})
	if err := store.Approve(ctx, execer, "loan-1", "admin-1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Reject(ctx, execer, "loan-2", "purpose\n\nRejection reason: no"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.MarkDisbursed(ctx, execer, "loan-3", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"status = 'APPROVED'", "status = 'REJECTED'", "status = 'DISBURSED'"}
	if len(queries) != len(expected) {
		t.Fatalf("expected %d queries, got %d", len(expected), len(queries))
	}
	for i, fragment := range expected {
		if !strings.Contains(queries[i], fragment) {
			t.Fatalf("query %d missing %q: %s", i, fragment, queries[i])
		}
	}
}

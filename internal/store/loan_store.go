package store

import (
	"context"
	"time"

	"sacco/internal/models"

	"github.com/shopspring/decimal"
)

type LoanStore struct {
	db DB
}

type LoanInput struct {
	ID           string
	Amount       int64
	InterestRate decimal.Decimal
	TermMonths   int
	Purpose      string
	AccountID    string
	UserID       string
	DueDate      time.Time
}

type LoanWithOwner struct {
	models.Loan
	UserName      string `db:"user_name"`
	UserEmail     string `db:"user_email"`
	AccountNumber string `db:"account_number"`
}

const loanColumns = `id, amount, interest_rate, term_months, status, purpose, account_id, user_id,
	due_date, approved_by, approved_at, disbursed_at, created_at, updated_at`

func NewLoanStore(db DB) *LoanStore {
	return &LoanStore{db: db}
}

func (s *LoanStore) Create(ctx context.Context, tx Getter, input LoanInput) (models.Loan, error) {
	var row models.Loan
	err := tx.GetContext(ctx, &row, `
		INSERT INTO loans (id, amount, interest_rate, term_months, status, purpose, account_id, user_id, due_date)
		VALUES ($1, $2, $3, $4, 'PENDING', $5, $6, $7, $8)
		RETURNING `+loanColumns,
		input.ID, input.Amount, input.InterestRate, input.TermMonths, input.Purpose, input.AccountID, input.UserID, input.DueDate,
	)
	if err != nil {
		return models.Loan{}, err
	}
	return row, nil
}

func (s *LoanStore) GetByID(ctx context.Context, loanID string) (models.Loan, error) {
	var row models.Loan
	err := s.db.GetContext(ctx, &row, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, loanID)
	if err != nil {
		return models.Loan{}, err
	}
	return row, nil
}

func (s *LoanStore) GetForUpdate(ctx context.Context, tx Getter, loanID string) (models.Loan, error) {
	var row models.Loan
	err := tx.GetContext(ctx, &row, `
		SELECT `+loanColumns+`
		FROM loans
		WHERE id = $1
		FOR UPDATE
	`, loanID)
	if err != nil {
		return models.Loan{}, err
	}
	return row, nil
}

// List returns loans newest first; an empty userID lists every member's loans.
func (s *LoanStore) List(ctx context.Context, userID string) ([]LoanWithOwner, error) {
	query := `
		SELECT l.id, l.amount, l.interest_rate, l.term_months, l.status, l.purpose, l.account_id, l.user_id,
		       l.due_date, l.approved_by, l.approved_at, l.disbursed_at, l.created_at, l.updated_at,
		       u.name AS user_name, u.email AS user_email, a.account_number
		FROM loans l
		JOIN users u ON u.id = l.user_id
		JOIN accounts a ON a.id = l.account_id
	`
	var args []any
	if userID != "" {
		query += " WHERE l.user_id = $1"
		args = append(args, userID)
	}
	query += " ORDER BY l.created_at DESC"
	var rows []LoanWithOwner
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LoanStore) Approve(ctx context.Context, tx Execer, loanID, approverID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET status = 'APPROVED', approved_by = $1, approved_at = $2, updated_at = NOW()
		WHERE id = $3
	`, approverID, at, loanID)
	return err
}

func (s *LoanStore) Reject(ctx context.Context, tx Execer, loanID, purpose string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET status = 'REJECTED', purpose = $1, updated_at = NOW()
		WHERE id = $2
	`, purpose, loanID)
	return err
}

func (s *LoanStore) MarkDisbursed(ctx context.Context, tx Execer, loanID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET status = 'DISBURSED', disbursed_at = $1, updated_at = NOW()
		WHERE id = $2
	`, at, loanID)
	return err
}

package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type TransactionStore struct {
	db DB
}

type TransactionFilter struct {
	UserID    string
	AccountID string
	Type      string
	Limit     int
	Offset    int
}

type TransactionView struct {
	ID            string    `db:"id"`
	Type          string    `db:"type"`
	Amount        int64     `db:"amount"`
	Description   string    `db:"description"`
	AccountID     string    `db:"account_id"`
	AccountNumber string    `db:"account_number"`
	OwnerName     *string   `db:"owner_name"`
	UserID        *string   `db:"user_id"`
	LoanID        *string   `db:"loan_id"`
	TransferID    *string   `db:"transfer_id"`
	CreatedAt     time.Time `db:"created_at"`
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// List returns transactions newest first. UserID restricts to the account
// owned by that user; AccountID to a single account.
func (s *TransactionStore) List(ctx context.Context, filter TransactionFilter) ([]TransactionView, error) {
	query := `
		SELECT t.id, t.type, t.amount, t.description, t.account_id, a.account_number,
		       u.name AS owner_name, t.user_id, t.loan_id, t.transfer_id, t.created_at
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		LEFT JOIN users u ON u.id = a.user_id
	`
	var conditions []string
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, "a.user_id = $"+itoa(len(args)))
	}
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		conditions = append(conditions, "t.account_id = $"+itoa(len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, "t.type = $"+itoa(len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += " ORDER BY t.created_at DESC LIMIT $" + itoa(len(args)-1) + " OFFSET $" + itoa(len(args))

	var rows []TransactionView
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func itoa(value int) string {
	return fmt.Sprintf("%d", value)
}

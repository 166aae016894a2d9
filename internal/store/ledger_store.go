package store

import (
	"context"
	"time"

	"sacco/internal/models"
)

// LedgerStore appends rows to the transactions table. Rows are never updated.
type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

type LedgerEntryInput struct {
	ID          string
	Type        models.TransactionType
	Amount      int64
	Description string
	AccountID   string
	UserID      *string
	LoanID      *string
	TransferID  *string
	CreatedAt   time.Time
}

func (e LedgerEntryInput) Transaction() models.Transaction {
	return models.Transaction{
		ID:          e.ID,
		Type:        e.Type,
		Amount:      e.Amount,
		Description: e.Description,
		AccountID:   e.AccountID,
		UserID:      e.UserID,
		LoanID:      e.LoanID,
		TransferID:  e.TransferID,
		CreatedAt:   e.CreatedAt,
	}
}

func (s *LedgerStore) InsertEntries(ctx context.Context, tx Execer, entries []LedgerEntryInput) error {
	query := `
		INSERT INTO transactions (id, type, amount, description, account_id, user_id, loan_id, transfer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query,
			entry.ID, entry.Type, entry.Amount, entry.Description, entry.AccountID,
			entry.UserID, entry.LoanID, entry.TransferID, entry.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// SumByAccount returns deposits and disbursements minus withdrawals.
func (s *LedgerStore) SumByAccount(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE WHEN type = 'WITHDRAW' THEN -amount ELSE amount END), 0)
		FROM transactions
		WHERE account_id = $1
	`, accountID)
	return sum, err
}

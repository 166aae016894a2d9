package store

import (
	"context"

	"sacco/internal/models"
)

type AccountStore struct {
	db DB
}

type AccountInput struct {
	ID            string
	AccountNumber string
	UserID        *string
	Balance       int64
}

type AccountWithUser struct {
	models.Account
	UserName  *string `db:"user_name"`
	UserEmail *string `db:"user_email"`
}

// AccountBalanceCheck compares a stored balance with the signed sum of the
// account's transaction rows.
type AccountBalanceCheck struct {
	AccountID     string  `db:"account_id"`
	AccountNumber string  `db:"account_number"`
	UserID        *string `db:"user_id"`
	StoredBalance int64   `db:"stored_balance"`
	LedgerSum     int64   `db:"ledger_sum"`
	Difference    int64   `db:"difference"`
}

const accountColumns = `id, account_number, balance, user_id, created_at, updated_at`

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, input AccountInput) error {
	query := `
		INSERT INTO accounts (id, account_number, user_id, balance)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.AccountNumber, input.UserID, input.Balance)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByUser(ctx context.Context, userID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByNumber(ctx context.Context, accountNumber string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, accountNumber)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, accountID)
	return err
}

func (s *AccountStore) ListAllWithUsers(ctx context.Context) ([]AccountWithUser, error) {
	var rows []AccountWithUser
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id, a.account_number, a.balance, a.user_id, a.created_at, a.updated_at,
		       u.name AS user_name, u.email AS user_email
		FROM accounts a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

const balanceCheckQuery = `
	SELECT a.id AS account_id,
	       a.account_number,
	       a.user_id,
	       a.balance AS stored_balance,
	       COALESCE(SUM(CASE WHEN t.type = 'WITHDRAW' THEN -t.amount ELSE t.amount END), 0) AS ledger_sum,
	       a.balance - COALESCE(SUM(CASE WHEN t.type = 'WITHDRAW' THEN -t.amount ELSE t.amount END), 0) AS difference
	FROM accounts a
	LEFT JOIN transactions t ON t.account_id = a.id
`

// CheckBalance reconciles the account owned by userID.
func (s *AccountStore) CheckBalance(ctx context.Context, userID string) ([]AccountBalanceCheck, error) {
	var rows []AccountBalanceCheck
	err := s.db.SelectContext(ctx, &rows, balanceCheckQuery+`
		WHERE a.user_id = $1
		GROUP BY a.id, a.account_number, a.user_id, a.balance
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Reconcile lists every account whose stored balance disagrees with its transactions.
func (s *AccountStore) Reconcile(ctx context.Context) ([]AccountBalanceCheck, error) {
	var rows []AccountBalanceCheck
	err := s.db.SelectContext(ctx, &rows, balanceCheckQuery+`
		GROUP BY a.id, a.account_number, a.user_id, a.balance
		HAVING a.balance <> COALESCE(SUM(CASE WHEN t.type = 'WITHDRAW' THEN -t.amount ELSE t.amount END), 0)
		ORDER BY a.account_number
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

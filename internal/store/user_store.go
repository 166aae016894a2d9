package store

import (
	"context"

	"sacco/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

type UserInput struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Role          models.Role
	EmailVerified bool
}

// UserWithAccount is a user joined to the account they own, if any.
type UserWithAccount struct {
	models.User
	AccountID     *string `db:"account_id"`
	AccountNumber *string `db:"account_number"`
	Balance       *int64  `db:"balance"`
}

const userColumns = `id, name, email, password_hash, role, email_verified, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, tx Execer, input UserInput) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, role, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.Name, input.Email, input.PasswordHash, input.Role, input.EmailVerified)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) GetRole(ctx context.Context, userID string) (models.Role, error) {
	var role models.Role
	err := s.db.GetContext(ctx, &role, `SELECT role FROM users WHERE id = $1`, userID)
	return role, err
}

// HasAnyAdmin takes a tx so the first-admin check shares the registration unit of work.
func (s *UserStore) HasAnyAdmin(ctx context.Context, tx Getter) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE role = 'ADMIN')`)
	return exists, err
}

func (s *UserStore) List(ctx context.Context) ([]UserWithAccount, error) {
	var rows []UserWithAccount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.id, u.name, u.email, u.password_hash, u.role, u.email_verified, u.created_at, u.updated_at,
		       a.id AS account_id, a.account_number, a.balance
		FROM users u
		LEFT JOIN accounts a ON a.user_id = u.id
		ORDER BY u.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET email_verified = TRUE, updated_at = NOW()
		WHERE id = $1
	`, userID)
	return err
}

func (s *UserStore) UpdatePassword(ctx context.Context, tx Execer, userID, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`, passwordHash, userID)
	return err
}

func (s *UserStore) Delete(ctx context.Context, tx Execer, userID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

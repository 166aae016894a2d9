package store

import (
	"context"
	"time"

	"sacco/internal/models"
)

type VerificationCodeStore struct {
	db DB
}

type VerificationCodeInput struct {
	ID        string
	UserID    string
	Code      string
	Type      models.CodeType
	ExpiresAt time.Time
}

func NewVerificationCodeStore(db DB) *VerificationCodeStore {
	return &VerificationCodeStore{db: db}
}

func (s *VerificationCodeStore) DeleteUnused(ctx context.Context, tx Execer, userID string, codeType models.CodeType) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM verification_codes
		WHERE user_id = $1 AND type = $2 AND used = FALSE
	`, userID, codeType)
	return err
}

func (s *VerificationCodeStore) Create(ctx context.Context, tx Execer, input VerificationCodeInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO verification_codes (id, user_id, code, type, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, input.ID, input.UserID, input.Code, input.Type, input.ExpiresAt)
	return err
}

// Consume marks a matching unused, unexpired code as used. It reports the
// number of rows changed: zero means the code was wrong, stale or spent.
func (s *VerificationCodeStore) Consume(ctx context.Context, userID, code string, codeType models.CodeType, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE verification_codes
		SET used = TRUE
		WHERE user_id = $1 AND code = $2 AND type = $3 AND used = FALSE AND expires_at > $4
	`, userID, code, codeType, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordFailure counts a wrong guess against the outstanding code of the
// given type and spends it once maxAttempts is reached.
func (s *VerificationCodeStore) RecordFailure(ctx context.Context, userID string, codeType models.CodeType, maxAttempts int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE verification_codes
		SET attempts = attempts + 1, used = attempts + 1 >= $3
		WHERE user_id = $1 AND type = $2 AND used = FALSE
	`, userID, codeType, maxAttempts)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

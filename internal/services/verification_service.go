package services

import (
	"context"
	"fmt"
	"time"

	"sacco/internal/auth"
	"sacco/internal/db"
	"sacco/internal/models"
	"sacco/internal/notify"
	"sacco/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type CodeStore interface {
	DeleteUnused(ctx context.Context, tx store.Execer, userID string, codeType models.CodeType) error
	Create(ctx context.Context, tx store.Execer, input store.VerificationCodeInput) error
	Consume(ctx context.Context, userID, code string, codeType models.CodeType, now time.Time) (int64, error)
	RecordFailure(ctx context.Context, userID string, codeType models.CodeType, maxAttempts int) (int64, error)
}

// MaxCodeAttempts is how many wrong guesses an outstanding code survives.
const MaxCodeAttempts = 5

// VerificationService issues and checks single-use email codes.
type VerificationService struct {
	txRunner db.TxRunner
	codes    CodeStore
	mailer   notify.Mailer
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

func NewVerificationService(txRunner db.TxRunner, codes CodeStore, mailer notify.Mailer, ttl time.Duration) *VerificationService {
	return &VerificationService{
		txRunner: txRunner,
		codes:    codes,
		mailer:   mailer,
		ttl:      ttl,
		now:      time.Now,
		generate: auth.GenerateCode,
	}
}

// Issue replaces any outstanding code of the same type and emails the new one.
func (s *VerificationService) Issue(ctx context.Context, userID, email string, codeType models.CodeType) error {
	if !codeType.Valid() {
		return fmt.Errorf("unknown code type %q", codeType)
	}
	code, err := s.generate()
	if err != nil {
		return err
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.codes.DeleteUnused(ctx, tx, userID, codeType); err != nil {
			return err
		}
		return s.codes.Create(ctx, tx, store.VerificationCodeInput{
			ID:        uuid.NewString(),
			UserID:    userID,
			Code:      code,
			Type:      codeType,
			ExpiresAt: s.now().UTC().Add(s.ttl),
		})
	})
	if err != nil {
		return err
	}
	subject, body := codeMessage(codeType, code, s.ttl)
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		return fmt.Errorf("deliver %s code: %w", codeType, err)
	}
	return nil
}

func (s *VerificationService) Verify(ctx context.Context, userID, code string, codeType models.CodeType) error {
	if code == "" {
		return ErrInvalidCode
	}
	consumed, err := s.codes.Consume(ctx, userID, code, codeType, s.now().UTC())
	if err != nil {
		return err
	}
	if consumed == 0 {
		if _, err := s.codes.RecordFailure(ctx, userID, codeType, MaxCodeAttempts); err != nil {
			return err
		}
		return ErrInvalidCode
	}
	return nil
}

func codeMessage(codeType models.CodeType, code string, ttl time.Duration) (string, string) {
	minutes := int(ttl.Minutes())
	switch codeType {
	case models.CodeRegistration:
		return "Verify your SACCO account",
			fmt.Sprintf("Welcome! Your email verification code is %s. It expires in %d minutes.", code, minutes)
	case models.CodeLogin:
		return "Your SACCO login code",
			fmt.Sprintf("Your login code is %s. It expires in %d minutes. If you did not try to sign in, change your password.", code, minutes)
	default:
		return "Reset your SACCO password",
			fmt.Sprintf("Your password reset code is %s. It expires in %d minutes. Ignore this email if you did not ask for a reset.", code, minutes)
	}
}

package services

import (
	"database/sql"
	"errors"

	"sacco/internal/db"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("cannot transfer to same account")
	ErrInvalidLoanState  = errors.New("invalid loan state")
	ErrInvalidCode       = errors.New("invalid or expired code")
	ErrConflict          = db.ErrConflict
)

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

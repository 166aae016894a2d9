package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

type TransactionType string

const (
	TransactionDeposit          TransactionType = "DEPOSIT"
	TransactionWithdraw         TransactionType = "WITHDRAW"
	TransactionLoanDisbursement TransactionType = "LOAN_DISBURSEMENT"
)

type LoanStatus string

const (
	LoanPending   LoanStatus = "PENDING"
	LoanApproved  LoanStatus = "APPROVED"
	LoanRejected  LoanStatus = "REJECTED"
	LoanDisbursed LoanStatus = "DISBURSED"
	// PAID and DEFAULTED exist in the schema; nothing transitions into them.
	LoanPaid      LoanStatus = "PAID"
	LoanDefaulted LoanStatus = "DEFAULTED"
)

type CodeType string

const (
	CodeRegistration  CodeType = "REGISTRATION"
	CodeLogin         CodeType = "LOGIN"
	CodePasswordReset CodeType = "PASSWORD_RESET"
)

func (t CodeType) Valid() bool {
	switch t {
	case CodeRegistration, CodeLogin, CodePasswordReset:
		return true
	}
	return false
}

type User struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	Role          Role      `db:"role" json:"role"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type Account struct {
	ID            string    `db:"id" json:"id"`
	AccountNumber string    `db:"account_number" json:"account_number"`
	Balance       int64     `db:"balance" json:"balance"`
	UserID        *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (a Account) OwnedBy(userID string) bool {
	return a.UserID != nil && *a.UserID == userID
}

type Transaction struct {
	ID          string          `db:"id" json:"id"`
	Type        TransactionType `db:"type" json:"type"`
	Amount      int64           `db:"amount" json:"amount"`
	Description string          `db:"description" json:"description"`
	AccountID   string          `db:"account_id" json:"account_id"`
	UserID      *string         `db:"user_id" json:"user_id,omitempty"`
	LoanID      *string         `db:"loan_id" json:"loan_id,omitempty"`
	TransferID  *string         `db:"transfer_id" json:"transfer_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

type Loan struct {
	ID           string          `db:"id" json:"id"`
	Amount       int64           `db:"amount" json:"amount"`
	InterestRate decimal.Decimal `db:"interest_rate" json:"interest_rate"`
	TermMonths   int             `db:"term_months" json:"term_months"`
	Status       LoanStatus      `db:"status" json:"status"`
	Purpose      string          `db:"purpose" json:"purpose"`
	AccountID    string          `db:"account_id" json:"account_id"`
	UserID       string          `db:"user_id" json:"user_id"`
	DueDate      time.Time       `db:"due_date" json:"due_date"`
	ApprovedBy   *string         `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	DisbursedAt  *time.Time      `db:"disbursed_at" json:"disbursed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

type VerificationCode struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Code      string    `db:"code" json:"-"`
	Type      CodeType  `db:"type" json:"type"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Used      bool      `db:"used" json:"used"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Announcement struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

package handlers

import (
	"context"

	"sacco/internal/models"
	"sacco/internal/services"
	"sacco/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, input store.UserInput) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	GetRole(ctx context.Context, userID string) (models.Role, error)
	HasAnyAdmin(ctx context.Context, tx store.Getter) (bool, error)
	List(ctx context.Context) ([]store.UserWithAccount, error)
	MarkEmailVerified(ctx context.Context, tx store.Execer, userID string) error
	UpdatePassword(ctx context.Context, tx store.Execer, userID, passwordHash string) error
	Delete(ctx context.Context, tx store.Execer, userID string) (int64, error)
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, input store.AccountInput) error
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetByUser(ctx context.Context, userID string) (models.Account, error)
	ListAllWithUsers(ctx context.Context) ([]store.AccountWithUser, error)
	CheckBalance(ctx context.Context, userID string) ([]store.AccountBalanceCheck, error)
	Reconcile(ctx context.Context) ([]store.AccountBalanceCheck, error)
}

type TransactionStore interface {
	List(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionView, error)
}

type AnnouncementStore interface {
	Create(ctx context.Context, id, title, content string) (models.Announcement, error)
	GetByID(ctx context.Context, id string) (models.Announcement, error)
	List(ctx context.Context) ([]models.Announcement, error)
	Update(ctx context.Context, id, title, content string) (models.Announcement, error)
	Delete(ctx context.Context, id string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, entityType string, limit, offset int) ([]map[string]any, error)
}

type LedgerService interface {
	Deposit(ctx context.Context, caller services.Caller, accountID string, amount int64, description string) (services.LedgerResult, error)
	Withdraw(ctx context.Context, caller services.Caller, accountID string, amount int64, description string) (services.LedgerResult, error)
	Transfer(ctx context.Context, caller services.Caller, req services.TransferRequest) (services.TransferResult, error)
	OpenAccount(ctx context.Context, caller services.Caller, userID *string, initialDeposit int64) (models.Account, error)
}

type LoanService interface {
	Apply(ctx context.Context, caller services.Caller, app services.LoanApplication) (models.Loan, error)
	Get(ctx context.Context, caller services.Caller, loanID string) (models.Loan, error)
	List(ctx context.Context, caller services.Caller, userID string) ([]store.LoanWithOwner, error)
	Approve(ctx context.Context, caller services.Caller, loanID string) (models.Loan, error)
	Reject(ctx context.Context, caller services.Caller, loanID, reason string) (models.Loan, error)
	Disburse(ctx context.Context, caller services.Caller, loanID string) (services.DisbursementResult, error)
}

type VerificationService interface {
	Issue(ctx context.Context, userID, email string, codeType models.CodeType) error
	Verify(ctx context.Context, userID, code string, codeType models.CodeType) error
}

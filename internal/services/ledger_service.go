package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"sacco/internal/accountno"
	"sacco/internal/db"
	"sacco/internal/models"
	"sacco/internal/money"
	"sacco/internal/notify"
	"sacco/internal/store"
	"sacco/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, input store.AccountInput) error
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetByNumber(ctx context.Context, accountNumber string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error
}

type LedgerStore interface {
	InsertEntries(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error
}

type DisbursableLoanStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, loanID string) (models.Loan, error)
	MarkDisbursed(ctx context.Context, tx store.Execer, loanID string, at time.Time) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// LedgerService owns every balance mutation. Each operation locks the rows it
// touches, checks its preconditions against the locked values and writes the
// balance, the transaction rows and the audit entry in one database transaction.
type LedgerService struct {
	txRunner db.TxRunner
	accounts AccountStore
	ledger   LedgerStore
	loans    DisbursableLoanStore
	audit    AuditStore
	hub      BalanceHub
	events   notify.Publisher
	now      func() time.Time
}

func NewLedgerService(txRunner db.TxRunner, accounts AccountStore, ledger LedgerStore, loans DisbursableLoanStore, audit AuditStore, hub BalanceHub, events notify.Publisher) *LedgerService {
	if events == nil {
		events = notify.NopPublisher{}
	}
	return &LedgerService{
		txRunner: txRunner,
		accounts: accounts,
		ledger:   ledger,
		loans:    loans,
		audit:    audit,
		hub:      hub,
		events:   events,
		now:      time.Now,
	}
}

type LedgerResult struct {
	Transaction models.Transaction `json:"transaction"`
	Balance     int64              `json:"balance"`
}

// TransferRequest names the destination by ToAccountID or, when that is
// empty, by ToAccountNumber.
type TransferRequest struct {
	FromAccountID   string
	ToAccountID     string
	ToAccountNumber string
	Amount          int64
	Description     string
}

type TransferResult struct {
	TransferID  string             `json:"transfer_id"`
	Withdrawal  models.Transaction `json:"withdrawal"`
	Deposit     models.Transaction `json:"deposit"`
	FromBalance int64              `json:"from_balance"`
}

type DisbursementResult struct {
	Loan        models.Loan        `json:"loan"`
	Transaction models.Transaction `json:"transaction"`
	Balance     int64              `json:"balance"`
}

// balanceChange is what gets pushed and published once a unit of work commits.
type balanceChange struct {
	account models.Account
	balance int64
	entry   store.LedgerEntryInput
	actorID string
}

func (s *LedgerService) Deposit(ctx context.Context, caller Caller, accountID string, amount int64, description string) (LedgerResult, error) {
	if amount <= 0 {
		return LedgerResult{}, ErrInvalidAmount
	}
	if _, err := s.authorize(ctx, caller, accountID); err != nil {
		return LedgerResult{}, err
	}
	if description == "" {
		description = "Deposit"
	}

	var change balanceChange
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			return notFound(err)
		}
		if account.Balance > math.MaxInt64-amount {
			return ErrInvalidAmount
		}
		balance := account.Balance + amount
		entry := s.entry(models.TransactionDeposit, amount, description, account.ID, caller.UserID)
		if err := s.apply(ctx, tx, account.ID, balance, entry); err != nil {
			return err
		}
		change = balanceChange{account: account, balance: balance, entry: entry, actorID: caller.UserID}
		return s.log(ctx, tx, caller.UserID, "deposit", "account", account.ID, map[string]any{
			"transaction_id": entry.ID,
			"amount":         amount,
			"balance":        balance,
		})
	})
	if err != nil {
		return LedgerResult{}, err
	}
	s.afterCommit(ctx, change)
	return LedgerResult{Transaction: change.entry.Transaction(), Balance: change.balance}, nil
}

func (s *LedgerService) Withdraw(ctx context.Context, caller Caller, accountID string, amount int64, description string) (LedgerResult, error) {
	if amount <= 0 {
		return LedgerResult{}, ErrInvalidAmount
	}
	if _, err := s.authorize(ctx, caller, accountID); err != nil {
		return LedgerResult{}, err
	}
	if description == "" {
		description = "Withdrawal"
	}

	var change balanceChange
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			return notFound(err)
		}
		if account.Balance < amount {
			return ErrInsufficientFunds
		}
		balance := account.Balance - amount
		entry := s.entry(models.TransactionWithdraw, amount, description, account.ID, caller.UserID)
		if err := s.apply(ctx, tx, account.ID, balance, entry); err != nil {
			return err
		}
		change = balanceChange{account: account, balance: balance, entry: entry, actorID: caller.UserID}
		return s.log(ctx, tx, caller.UserID, "withdraw", "account", account.ID, map[string]any{
			"transaction_id": entry.ID,
			"amount":         amount,
			"balance":        balance,
		})
	})
	if err != nil {
		return LedgerResult{}, err
	}
	s.afterCommit(ctx, change)
	return LedgerResult{Transaction: change.entry.Transaction(), Balance: change.balance}, nil
}

// Transfer moves funds between two accounts as a WITHDRAW and DEPOSIT pair
// sharing one transfer id.
func (s *LedgerService) Transfer(ctx context.Context, caller Caller, req TransferRequest) (TransferResult, error) {
	if req.Amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	if _, err := s.authorize(ctx, caller, req.FromAccountID); err != nil {
		return TransferResult{}, err
	}
	if req.ToAccountID == "" {
		to, err := s.accounts.GetByNumber(ctx, req.ToAccountNumber)
		if err != nil {
			return TransferResult{}, notFound(err)
		}
		req.ToAccountID = to.ID
	}
	if req.FromAccountID == req.ToAccountID {
		return TransferResult{}, ErrSameAccount
	}

	transferID := uuid.NewString()
	var debit, credit balanceChange
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		from, to, err := lockTwoAccounts(ctx, tx, s.accounts, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return notFound(err)
		}
		if from.Balance < req.Amount {
			return ErrInsufficientFunds
		}
		if to.Balance > math.MaxInt64-req.Amount {
			return ErrInvalidAmount
		}
		outDescription, inDescription := req.Description, req.Description
		if outDescription == "" {
			outDescription = "Transfer to account " + to.AccountNumber
			inDescription = "Transfer from account " + from.AccountNumber
		}

		withdrawal := s.entry(models.TransactionWithdraw, req.Amount, outDescription, from.ID, caller.UserID)
		withdrawal.TransferID = &transferID
		deposit := s.entry(models.TransactionDeposit, req.Amount, inDescription, to.ID, caller.UserID)
		deposit.TransferID = &transferID

		fromBalance := from.Balance - req.Amount
		toBalance := to.Balance + req.Amount
		if err := s.accounts.UpdateBalance(ctx, tx, from.ID, fromBalance); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, to.ID, toBalance); err != nil {
			return err
		}
		if err := s.ledger.InsertEntries(ctx, tx, []store.LedgerEntryInput{withdrawal, deposit}); err != nil {
			return err
		}
		debit = balanceChange{account: from, balance: fromBalance, entry: withdrawal, actorID: caller.UserID}
		credit = balanceChange{account: to, balance: toBalance, entry: deposit, actorID: caller.UserID}
		return s.log(ctx, tx, caller.UserID, "transfer", "transfer", transferID, map[string]any{
			"from_account_id": from.ID,
			"to_account_id":   to.ID,
			"amount":          req.Amount,
		})
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.afterCommit(ctx, debit, credit)
	return TransferResult{
		TransferID:  transferID,
		Withdrawal:  debit.entry.Transaction(),
		Deposit:     credit.entry.Transaction(),
		FromBalance: debit.balance,
	}, nil
}

const accountNumberAttempts = 3

// OpenAccount creates an account, unowned when userID is nil, and posts
// initialDeposit to it in the same unit of work. A generated account number
// that is already taken starts the unit of work over with a fresh one.
func (s *LedgerService) OpenAccount(ctx context.Context, caller Caller, userID *string, initialDeposit int64) (models.Account, error) {
	if !caller.IsAdmin() {
		return models.Account{}, ErrUnauthorized
	}
	if initialDeposit < 0 {
		return models.Account{}, ErrInvalidAmount
	}

	var account models.Account
	var change *balanceChange
	var err error
	for attempt := 1; attempt <= accountNumberAttempts; attempt++ {
		account, change, err = s.openAccount(ctx, caller, userID, initialDeposit)
		if !db.IsUniqueViolationOn(err, db.AccountsAccountNumberKey) {
			break
		}
		zap.L().Warn("account number collision", zap.Int("attempt", attempt))
	}
	if err != nil {
		return models.Account{}, err
	}
	if change != nil {
		s.afterCommit(ctx, *change)
	}
	return account, nil
}

func (s *LedgerService) openAccount(ctx context.Context, caller Caller, userID *string, initialDeposit int64) (models.Account, *balanceChange, error) {
	number, err := accountno.Generate()
	if err != nil {
		return models.Account{}, nil, err
	}
	now := s.now().UTC()
	account := models.Account{
		ID:            uuid.NewString(),
		AccountNumber: number,
		UserID:        userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var change *balanceChange
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		change = nil
		if err := s.accounts.Create(ctx, tx, store.AccountInput{
			ID:            account.ID,
			AccountNumber: account.AccountNumber,
			UserID:        account.UserID,
		}); err != nil {
			return err
		}
		owner := ""
		if userID != nil {
			owner = *userID
		}
		if err := s.log(ctx, tx, caller.UserID, "create_account", "account", account.ID, map[string]any{
			"user_id": owner,
		}); err != nil {
			return err
		}
		if initialDeposit == 0 {
			return nil
		}
		entry := s.entry(models.TransactionDeposit, initialDeposit, "Initial deposit", account.ID, caller.UserID)
		if err := s.apply(ctx, tx, account.ID, initialDeposit, entry); err != nil {
			return err
		}
		change = &balanceChange{account: account, balance: initialDeposit, entry: entry, actorID: caller.UserID}
		return s.log(ctx, tx, caller.UserID, "deposit", "account", account.ID, map[string]any{
			"transaction_id": entry.ID,
			"amount":         initialDeposit,
			"balance":        initialDeposit,
		})
	})
	if err != nil {
		return models.Account{}, nil, err
	}
	account.Balance = initialDeposit
	return account, change, nil
}

// DisburseLoan credits an approved loan's principal to its account and moves
// the loan to DISBURSED.
func (s *LedgerService) DisburseLoan(ctx context.Context, caller Caller, loanID string) (DisbursementResult, error) {
	if !caller.IsAdmin() {
		return DisbursementResult{}, ErrUnauthorized
	}

	var loan models.Loan
	var change balanceChange
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		loan, err = s.loans.GetForUpdate(ctx, tx, loanID)
		if err != nil {
			return notFound(err)
		}
		if loan.Status != models.LoanApproved {
			return ErrInvalidLoanState
		}
		account, err := s.accounts.GetForUpdate(ctx, tx, loan.AccountID)
		if err != nil {
			return notFound(err)
		}
		if account.Balance > math.MaxInt64-loan.Amount {
			return ErrInvalidAmount
		}

		now := s.now().UTC()
		balance := account.Balance + loan.Amount
		description := fmt.Sprintf("Loan disbursement - %d months at %s%% interest", loan.TermMonths, loan.InterestRate.String())
		entry := s.entry(models.TransactionLoanDisbursement, loan.Amount, description, account.ID, loan.UserID)
		entry.LoanID = &loan.ID
		if err := s.apply(ctx, tx, account.ID, balance, entry); err != nil {
			return err
		}
		if err := s.loans.MarkDisbursed(ctx, tx, loan.ID, now); err != nil {
			return err
		}
		loan.Status = models.LoanDisbursed
		loan.DisbursedAt = &now
		change = balanceChange{account: account, balance: balance, entry: entry, actorID: caller.UserID}
		return s.log(ctx, tx, caller.UserID, "disburse_loan", "loan", loan.ID, map[string]any{
			"transaction_id": entry.ID,
			"account_id":     account.ID,
			"amount":         loan.Amount,
		})
	})
	if err != nil {
		return DisbursementResult{}, err
	}
	s.afterCommit(ctx, change)
	return DisbursementResult{Loan: loan, Transaction: change.entry.Transaction(), Balance: change.balance}, nil
}

// authorize reads the account outside the unit of work. Ownership never
// changes, so a stale read cannot grant access. A member asking about an
// account that does not exist is told they are not allowed, not that it is
// missing.
func (s *LedgerService) authorize(ctx context.Context, caller Caller, accountID string) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		err = notFound(err)
		if errors.Is(err, ErrNotFound) && !caller.IsAdmin() {
			return models.Account{}, ErrUnauthorized
		}
		return models.Account{}, err
	}
	if !caller.canAct(account) {
		return models.Account{}, ErrUnauthorized
	}
	return account, nil
}

func (s *LedgerService) entry(txType models.TransactionType, amount int64, description, accountID, userID string) store.LedgerEntryInput {
	entry := store.LedgerEntryInput{
		ID:          uuid.NewString(),
		Type:        txType,
		Amount:      amount,
		Description: description,
		AccountID:   accountID,
		CreatedAt:   s.now().UTC(),
	}
	if userID != "" {
		entry.UserID = &userID
	}
	return entry
}

func (s *LedgerService) apply(ctx context.Context, tx *sqlx.Tx, accountID string, balance int64, entry store.LedgerEntryInput) error {
	if err := s.accounts.UpdateBalance(ctx, tx, accountID, balance); err != nil {
		return err
	}
	return s.ledger.InsertEntries(ctx, tx, []store.LedgerEntryInput{entry})
}

func (s *LedgerService) log(ctx context.Context, tx *sqlx.Tx, actorID, action, entityType, entityID string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.audit.Log(ctx, tx, actorID, action, entityType, entityID, string(payload))
}

// afterCommit notifies connected owners and downstream consumers. Failures
// here are logged; the ledger has already committed.
func (s *LedgerService) afterCommit(ctx context.Context, changes ...balanceChange) {
	events := make([]notify.LedgerEvent, 0, len(changes))
	for _, change := range changes {
		if change.account.UserID != nil && s.hub != nil {
			s.hub.BroadcastBalance(*change.account.UserID, websocket.BalanceUpdate{
				AccountID:     change.account.ID,
				AccountNumber: change.account.AccountNumber,
				Balance:       money.FormatMinor(change.balance),
				TransactionID: change.entry.ID,
			})
		}
		event := notify.LedgerEvent{
			Type:          string(change.entry.Type),
			TransactionID: change.entry.ID,
			AccountID:     change.account.ID,
			AccountNumber: change.account.AccountNumber,
			Amount:        change.entry.Amount,
			Balance:       change.balance,
			ActorID:       change.actorID,
			OccurredAt:    change.entry.CreatedAt,
		}
		if change.entry.TransferID != nil {
			event.TransferID = *change.entry.TransferID
		}
		if change.entry.LoanID != nil {
			event.LoanID = *change.entry.LoanID
		}
		events = append(events, event)
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), events...); err != nil {
		zap.L().Warn("failed to publish ledger events", zap.Int("count", len(events)), zap.Error(err))
	}
}

func lockTwoAccounts(ctx context.Context, tx store.Getter, accounts AccountStore, firstID, secondID string) (models.Account, models.Account, error) {
	leftID, rightID := orderedIDs(firstID, secondID)
	left, err := accounts.GetForUpdate(ctx, tx, leftID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	right, err := accounts.GetForUpdate(ctx, tx, rightID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	if firstID == leftID {
		return left, right, nil
	}
	return right, left, nil
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}

package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"sacco/internal/models"
	"sacco/internal/notify"
	"sacco/internal/store"
	"sacco/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// serialTxRunner runs one unit of work at a time, the way row locks
// serialize writers to the same account.
type serialTxRunner struct {
	mu *sync.Mutex
}

func (r serialTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(nil)
}

// countingTxRunner counts units of work.
type countingTxRunner struct {
	calls *int
}

func (r countingTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	*r.calls++
	return fn(nil)
}

type stubAccountStore struct {
	createFn        func(ctx context.Context, tx store.Execer, input store.AccountInput) error
	getByIDFn       func(ctx context.Context, accountID string) (models.Account, error)
	getByUserFn     func(ctx context.Context, userID string) (models.Account, error)
	getByNumberFn   func(ctx context.Context, accountNumber string) (models.Account, error)
	getForUpdateFn  func(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	updateBalanceFn func(ctx context.Context, tx store.Execer, accountID string, balance int64) error
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Execer, input store.AccountInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubAccountStore) GetByNumber(ctx context.Context, accountNumber string) (models.Account, error) {
	if s.getByNumberFn == nil {
		return models.Account{}, sql.ErrNoRows
	}
	return s.getByNumberFn(ctx, accountNumber)
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) GetByUser(ctx context.Context, userID string) (models.Account, error) {
	if s.getByUserFn == nil {
		return models.Account{}, sql.ErrNoRows
	}
	return s.getByUserFn(ctx, userID)
}

func (s stubAccountStore) GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error) {
	if s.getForUpdateFn == nil {
		return s.GetByID(ctx, accountID)
	}
	return s.getForUpdateFn(ctx, tx, accountID)
}

func (s stubAccountStore) UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error {
	if s.updateBalanceFn == nil {
		return nil
	}
	return s.updateBalanceFn(ctx, tx, accountID, balance)
}

// memoryAccounts is an in-memory account table.
type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]models.Account
}

func newMemoryAccounts(accounts ...models.Account) *memoryAccounts {
	m := &memoryAccounts{accounts: make(map[string]models.Account)}
	for _, account := range accounts {
		m.accounts[account.ID] = account
	}
	return m
}

func (m *memoryAccounts) GetByID(_ context.Context, accountID string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return account, nil
}

func (m *memoryAccounts) GetByNumber(_ context.Context, accountNumber string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.AccountNumber == accountNumber {
			return account, nil
		}
	}
	return models.Account{}, sql.ErrNoRows
}

func (m *memoryAccounts) Create(_ context.Context, _ store.Execer, input store.AccountInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[input.ID] = models.Account{
		ID:            input.ID,
		AccountNumber: input.AccountNumber,
		UserID:        input.UserID,
		Balance:       input.Balance,
	}
	return nil
}

func (m *memoryAccounts) GetForUpdate(ctx context.Context, _ store.Getter, accountID string) (models.Account, error) {
	return m.GetByID(ctx, accountID)
}

func (m *memoryAccounts) UpdateBalance(_ context.Context, _ store.Execer, accountID string, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.accounts[accountID]
	account.Balance = balance
	m.accounts[accountID] = account
	return nil
}

func (m *memoryAccounts) balance(accountID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[accountID].Balance
}

type stubLedgerStore struct {
	mu       sync.Mutex
	entries  []store.LedgerEntryInput
	insertFn func(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error
}

func (s *stubLedgerStore) InsertEntries(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error {
	if s.insertFn != nil {
		if err := s.insertFn(ctx, tx, entries); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

type stubLoanStore struct {
	createFn        func(ctx context.Context, tx store.Getter, input store.LoanInput) (models.Loan, error)
	getByIDFn       func(ctx context.Context, loanID string) (models.Loan, error)
	getForUpdateFn  func(ctx context.Context, tx store.Getter, loanID string) (models.Loan, error)
	listFn          func(ctx context.Context, userID string) ([]store.LoanWithOwner, error)
	approveFn       func(ctx context.Context, tx store.Execer, loanID, approverID string, at time.Time) error
	rejectFn        func(ctx context.Context, tx store.Execer, loanID, purpose string) error
	markDisbursedFn func(ctx context.Context, tx store.Execer, loanID string, at time.Time) error
}

func (s stubLoanStore) Create(ctx context.Context, tx store.Getter, input store.LoanInput) (models.Loan, error) {
	return s.createFn(ctx, tx, input)
}

func (s stubLoanStore) GetByID(ctx context.Context, loanID string) (models.Loan, error) {
	if s.getByIDFn == nil {
		return models.Loan{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, loanID)
}

func (s stubLoanStore) GetForUpdate(ctx context.Context, tx store.Getter, loanID string) (models.Loan, error) {
	if s.getForUpdateFn == nil {
		return models.Loan{}, sql.ErrNoRows
	}
	return s.getForUpdateFn(ctx, tx, loanID)
}

func (s stubLoanStore) List(ctx context.Context, userID string) ([]store.LoanWithOwner, error) {
	return s.listFn(ctx, userID)
}

func (s stubLoanStore) Approve(ctx context.Context, tx store.Execer, loanID, approverID string, at time.Time) error {
	if s.approveFn == nil {
		return nil
	}
	return s.approveFn(ctx, tx, loanID, approverID, at)
}

func (s stubLoanStore) Reject(ctx context.Context, tx store.Execer, loanID, purpose string) error {
	if s.rejectFn == nil {
		return nil
	}
	return s.rejectFn(ctx, tx, loanID, purpose)
}

func (s stubLoanStore) MarkDisbursed(ctx context.Context, tx store.Execer, loanID string, at time.Time) error {
	if s.markDisbursedFn == nil {
		return nil
	}
	return s.markDisbursedFn(ctx, tx, loanID, at)
}

type auditCall struct {
	actorID, action, entityType, entityID, data string
}

type stubAuditStore struct {
	mu    sync.Mutex
	calls []auditCall
	err   error
}

func (s *stubAuditStore) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, auditCall{actorID, action, entityType, entityID, data})
	return nil
}

type hubCall struct {
	userID string
	update websocket.BalanceUpdate
}

type stubHub struct {
	mu    sync.Mutex
	calls []hubCall
}

func (s *stubHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, hubCall{userID: userID, update: update})
}

type stubPublisher struct {
	mu     sync.Mutex
	events []notify.LedgerEvent
	err    error
}

func (s *stubPublisher) Publish(_ context.Context, events ...notify.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return s.err
}

type stubDisburser struct {
	disburseFn func(ctx context.Context, caller Caller, loanID string) (DisbursementResult, error)
}

func (s stubDisburser) DisburseLoan(ctx context.Context, caller Caller, loanID string) (DisbursementResult, error) {
	return s.disburseFn(ctx, caller, loanID)
}

type stubCodeStore struct {
	deleteUnusedFn func(ctx context.Context, tx store.Execer, userID string, codeType models.CodeType) error
	createFn       func(ctx context.Context, tx store.Execer, input store.VerificationCodeInput) error
	consumeFn      func(ctx context.Context, userID, code string, codeType models.CodeType, now time.Time) (int64, error)
	failureFn      func(ctx context.Context, userID string, codeType models.CodeType, maxAttempts int) (int64, error)
}

func (s stubCodeStore) DeleteUnused(ctx context.Context, tx store.Execer, userID string, codeType models.CodeType) error {
	if s.deleteUnusedFn == nil {
		return nil
	}
	return s.deleteUnusedFn(ctx, tx, userID, codeType)
}

func (s stubCodeStore) Create(ctx context.Context, tx store.Execer, input store.VerificationCodeInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubCodeStore) Consume(ctx context.Context, userID, code string, codeType models.CodeType, now time.Time) (int64, error) {
	return s.consumeFn(ctx, userID, code, codeType, now)
}

func (s stubCodeStore) RecordFailure(ctx context.Context, userID string, codeType models.CodeType, maxAttempts int) (int64, error) {
	if s.failureFn == nil {
		return 0, nil
	}
	return s.failureFn(ctx, userID, codeType, maxAttempts)
}

type sentMail struct {
	to, subject, body string
}

type stubMailer struct {
	sent []sentMail
	err  error
}

func (s *stubMailer) Send(_ context.Context, to, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{to, subject, body})
	return nil
}

func stringPtr(value string) *string {
	return &value
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
}

package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"sacco/internal/auth"
	"sacco/internal/config"
	"sacco/internal/models"
	"sacco/internal/services"
	"sacco/internal/store"
	"sacco/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn            func(ctx context.Context, input store.UserInput) error
	getByEmailFn        func(ctx context.Context, email string) (models.User, error)
	getByIDFn           func(ctx context.Context, userID string) (models.User, error)
	getRoleFn           func(ctx context.Context, userID string) (models.Role, error)
	hasAnyAdminFn       func(ctx context.Context) (bool, error)
	listFn              func(ctx context.Context) ([]store.UserWithAccount, error)
	markEmailVerifiedFn func(ctx context.Context, userID string) error
	updatePasswordFn    func(ctx context.Context, userID, passwordHash string) error
	deleteFn            func(ctx context.Context, userID string) (int64, error)
}

func (s stubUserStore) Create(ctx context.Context, _ store.Execer, input store.UserInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, userID)
}

// GetRole defaults to USER so admin routes are closed unless a test opens them.
func (s stubUserStore) GetRole(ctx context.Context, userID string) (models.Role, error) {
	if s.getRoleFn == nil {
		return models.RoleUser, nil
	}
	return s.getRoleFn(ctx, userID)
}

func (s stubUserStore) HasAnyAdmin(ctx context.Context, _ store.Getter) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

func (s stubUserStore) List(ctx context.Context) ([]store.UserWithAccount, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s stubUserStore) MarkEmailVerified(ctx context.Context, _ store.Execer, userID string) error {
	if s.markEmailVerifiedFn == nil {
		return nil
	}
	return s.markEmailVerifiedFn(ctx, userID)
}

func (s stubUserStore) UpdatePassword(ctx context.Context, _ store.Execer, userID, passwordHash string) error {
	if s.updatePasswordFn == nil {
		return nil
	}
	return s.updatePasswordFn(ctx, userID, passwordHash)
}

func (s stubUserStore) Delete(ctx context.Context, _ store.Execer, userID string) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, userID)
}

type stubAccountStore struct {
	createFn       func(ctx context.Context, input store.AccountInput) error
	getByIDFn      func(ctx context.Context, accountID string) (models.Account, error)
	getByUserFn    func(ctx context.Context, userID string) (models.Account, error)
	listFn         func(ctx context.Context) ([]store.AccountWithUser, error)
	checkBalanceFn func(ctx context.Context, userID string) ([]store.AccountBalanceCheck, error)
	reconcileFn    func(ctx context.Context) ([]store.AccountBalanceCheck, error)
}

func (s stubAccountStore) Create(ctx context.Context, _ store.Execer, input store.AccountInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
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

func (s stubAccountStore) ListAllWithUsers(ctx context.Context) ([]store.AccountWithUser, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s stubAccountStore) CheckBalance(ctx context.Context, userID string) ([]store.AccountBalanceCheck, error) {
	if s.checkBalanceFn == nil {
		return nil, nil
	}
	return s.checkBalanceFn(ctx, userID)
}

func (s stubAccountStore) Reconcile(ctx context.Context) ([]store.AccountBalanceCheck, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx)
}

type stubTransactionStore struct {
	listFn func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionView, error)
}

func (s stubTransactionStore) List(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionView, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

type stubAnnouncementStore struct {
	createFn  func(ctx context.Context, id, title, content string) (models.Announcement, error)
	getByIDFn func(ctx context.Context, id string) (models.Announcement, error)
	listFn    func(ctx context.Context) ([]models.Announcement, error)
	updateFn  func(ctx context.Context, id, title, content string) (models.Announcement, error)
	deleteFn  func(ctx context.Context, id string) (int64, error)
}

func (s stubAnnouncementStore) Create(ctx context.Context, id, title, content string) (models.Announcement, error) {
	if s.createFn == nil {
		return models.Announcement{ID: id, Title: title, Content: content}, nil
	}
	return s.createFn(ctx, id, title, content)
}

func (s stubAnnouncementStore) GetByID(ctx context.Context, id string) (models.Announcement, error) {
	if s.getByIDFn == nil {
		return models.Announcement{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, id)
}

func (s stubAnnouncementStore) List(ctx context.Context) ([]models.Announcement, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s stubAnnouncementStore) Update(ctx context.Context, id, title, content string) (models.Announcement, error) {
	if s.updateFn == nil {
		return models.Announcement{ID: id, Title: title, Content: content}, nil
	}
	return s.updateFn(ctx, id, title, content)
}

func (s stubAnnouncementStore) Delete(ctx context.Context, id string) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, id)
}

type auditCall struct {
	actorID    string
	action     string
	entityType string
	entityID   string
}

type stubAuditStore struct {
	calls  *[]auditCall
	logErr error
	listFn func(ctx context.Context, entityType string, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, _ string) error {
	if s.calls != nil {
		*s.calls = append(*s.calls, auditCall{actorID: actorID, action: action, entityType: entityType, entityID: entityID})
	}
	return s.logErr
}

func (s stubAuditStore) List(ctx context.Context, entityType string, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return []map[string]any{}, nil
	}
	return s.listFn(ctx, entityType, limit, offset)
}

type stubLedgerService struct {
	depositFn  func(ctx context.Context, caller services.Caller, accountID string, amount int64, description string) (services.LedgerResult, error)
	withdrawFn func(ctx context.Context, caller services.Caller, accountID string, amount int64, description string) (services.LedgerResult, error)
	transferFn func(ctx context.Context, caller services.Caller, req services.TransferRequest) (services.TransferResult, error)
	openFn     func(ctx context.Context, caller services.Caller, userID *string, initialDeposit int64) (models.Account, error)
}

func (s stubLedgerService) Deposit(ctx context.Context, caller services.Caller, accountID string, amount int64, description string) (services.LedgerResult, error) {
	if s.depositFn == nil {
		return services.LedgerResult{}, nil
	}
	return s.depositFn(ctx, caller, accountID, amount, description)
}

func (s stubLedgerService) Withdraw(ctx context.Context, caller services.Caller, accountID string, amount int64, description string) (services.LedgerResult, error) {
	if s.withdrawFn == nil {
		return services.LedgerResult{}, nil
	}
	return s.withdrawFn(ctx, caller, accountID, amount, description)
}

func (s stubLedgerService) Transfer(ctx context.Context, caller services.Caller, req services.TransferRequest) (services.TransferResult, error) {
	if s.transferFn == nil {
		return services.TransferResult{}, nil
	}
	return s.transferFn(ctx, caller, req)
}

func (s stubLedgerService) OpenAccount(ctx context.Context, caller services.Caller, userID *string, initialDeposit int64) (models.Account, error) {
	if s.openFn == nil {
		return models.Account{ID: "acc-new", AccountNumber: "1234567897", UserID: userID, Balance: initialDeposit}, nil
	}
	return s.openFn(ctx, caller, userID, initialDeposit)
}

type stubLoanService struct {
	applyFn    func(ctx context.Context, caller services.Caller, app services.LoanApplication) (models.Loan, error)
	getFn      func(ctx context.Context, caller services.Caller, loanID string) (models.Loan, error)
	listFn     func(ctx context.Context, caller services.Caller, userID string) ([]store.LoanWithOwner, error)
	approveFn  func(ctx context.Context, caller services.Caller, loanID string) (models.Loan, error)
	rejectFn   func(ctx context.Context, caller services.Caller, loanID, reason string) (models.Loan, error)
	disburseFn func(ctx context.Context, caller services.Caller, loanID string) (services.DisbursementResult, error)
}

func (s stubLoanService) Apply(ctx context.Context, caller services.Caller, app services.LoanApplication) (models.Loan, error) {
	if s.applyFn == nil {
		return models.Loan{}, nil
	}
	return s.applyFn(ctx, caller, app)
}

func (s stubLoanService) Get(ctx context.Context, caller services.Caller, loanID string) (models.Loan, error) {
	if s.getFn == nil {
		return models.Loan{}, services.ErrNotFound
	}
	return s.getFn(ctx, caller, loanID)
}

func (s stubLoanService) List(ctx context.Context, caller services.Caller, userID string) ([]store.LoanWithOwner, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, caller, userID)
}

func (s stubLoanService) Approve(ctx context.Context, caller services.Caller, loanID string) (models.Loan, error) {
	if s.approveFn == nil {
		return models.Loan{}, nil
	}
	return s.approveFn(ctx, caller, loanID)
}

func (s stubLoanService) Reject(ctx context.Context, caller services.Caller, loanID, reason string) (models.Loan, error) {
	if s.rejectFn == nil {
		return models.Loan{}, nil
	}
	return s.rejectFn(ctx, caller, loanID, reason)
}

func (s stubLoanService) Disburse(ctx context.Context, caller services.Caller, loanID string) (services.DisbursementResult, error) {
	if s.disburseFn == nil {
		return services.DisbursementResult{}, nil
	}
	return s.disburseFn(ctx, caller, loanID)
}

type issuedCode struct {
	userID   string
	email    string
	codeType models.CodeType
}

type stubVerificationService struct {
	issued   *[]issuedCode
	issueErr error
	verifyFn func(ctx context.Context, userID, code string, codeType models.CodeType) error
}

func (s stubVerificationService) Issue(_ context.Context, userID, email string, codeType models.CodeType) error {
	if s.issued != nil {
		*s.issued = append(*s.issued, issuedCode{userID: userID, email: email, codeType: codeType})
	}
	return s.issueErr
}

func (s stubVerificationService) Verify(ctx context.Context, userID, code string, codeType models.CodeType) error {
	if s.verifyFn == nil {
		return services.ErrInvalidCode
	}
	return s.verifyFn(ctx, userID, code, codeType)
}

// testDeps bundles the handler's collaborators; zero values fall back to the
// stubs' defaults.
type testDeps struct {
	txRunner      fakeTxRunner
	users         stubUserStore
	accounts      stubAccountStore
	transactions  stubTransactionStore
	announcements stubAnnouncementStore
	audit         stubAuditStore
	ledger        stubLedgerService
	loans         stubLoanService
	verification  stubVerificationService
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(deps.txRunner, cfg, deps.users, deps.accounts, deps.transactions, deps.announcements, deps.audit, deps.ledger, deps.loans, deps.verification, websocket.NewHub())
}

// serve sends a request through the full router. An empty userID sends no token.
func serve(t *testing.T, handler *Handler, method, path string, body any, userID string, role models.Role) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, role, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	if got := decodeBody(t, rr)["error"]; got != code {
		t.Fatalf("expected error %q, got %v", code, got)
	}
}

func adminRole(context.Context, string) (models.Role, error) {
	return models.RoleAdmin, nil
}

func stringPtr(value string) *string {
	return &value
}

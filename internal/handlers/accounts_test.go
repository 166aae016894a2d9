package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"sacco/internal/models"
	"sacco/internal/services"
	"sacco/internal/store"
)

func ownedAccount(id, userID string, balance int64) models.Account {
	return models.Account{ID: id, AccountNumber: "1234567897", Balance: balance, UserID: stringPtr(userID)}
}

func TestListAccountsReturnsOwnAccount(t *testing.T) {
	handler := newTestHandler(testDeps{
		accounts: stubAccountStore{
			getByUserFn: func(_ context.Context, userID string) (models.Account, error) {
				return ownedAccount("acc-1", userID, 2500), nil
			},
		},
	})

	rr := serve(t, handler, http.MethodGet, "/accounts", nil, "user-1", models.RoleUser)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); !containsAll(body, `"balance":"25.00"`, `"user_id":"user-1"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestListAccountsWithoutAccount(t *testing.T) {
	handler := newTestHandler(testDeps{})

	rr := serve(t, handler, http.MethodGet, "/accounts", nil, "user-1", models.RoleUser)

	if rr.Code != http.StatusOK || rr.Body.String() != "[]\n" {
		t.Fatalf("expected empty list, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestGetAccountHidesOtherMembersAccounts(t *testing.T) {
	handler := newTestHandler(testDeps{
		accounts: stubAccountStore{
			getByIDFn: func(_ context.Context, accountID string) (models.Account, error) {
				if accountID == "acc-2" {
					return ownedAccount("acc-2", "user-2", 100), nil
				}
				return models.Account{}, services.ErrNotFound
			},
		},
	})

	rr := serve(t, handler, http.MethodGet, "/accounts/acc-2", nil, "user-1", models.RoleUser)
	expectError(t, rr, http.StatusForbidden, "forbidden")

	rr = serve(t, handler, http.MethodGet, "/accounts/acc-2", nil, "admin-1", models.RoleAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected admin to see account, got %d", rr.Code)
	}
}

func TestGetAccountMissing(t *testing.T) {
	handler := newTestHandler(testDeps{})

	rr := serve(t, handler, http.MethodGet, "/accounts/missing", nil, "user-1", models.RoleUser)
	expectError(t, rr, http.StatusForbidden, "forbidden")

	rr = serve(t, handler, http.MethodGet, "/accounts/missing", nil, "admin-1", models.RoleAdmin)
	expectError(t, rr, http.StatusNotFound, "not_found")
}

func TestAccountTransactionsScopedToAccount(t *testing.T) {
	var filter store.TransactionFilter
	handler := newTestHandler(testDeps{
		accounts: stubAccountStore{
			getByIDFn: func(context.Context, string) (models.Account, error) {
				return ownedAccount("acc-1", "user-1", 0), nil
			},
		},
		transactions: stubTransactionStore{
			listFn: func(_ context.Context, f store.TransactionFilter) ([]store.TransactionView, error) {
				filter = f
				return []store.TransactionView{{ID: "tx-1", Type: "DEPOSIT", Amount: 1000, AccountID: "acc-1", CreatedAt: time.Now()}}, nil
			},
		},
	})

	rr := serve(t, handler, http.MethodGet, "/accounts/acc-1/transactions?page=2&limit=10", nil, "user-1", models.RoleUser)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if filter.AccountID != "acc-1" || filter.Limit != 10 || filter.Offset != 10 {
		t.Fatalf("unexpected filter %+v", filter)
	}
	if !containsAll(rr.Body.String(), `"amount":"10.00"`) {
		t.Fatalf("expected formatted amount, got %s", rr.Body.String())
	}
}

func TestDepositParsesAmount(t *testing.T) {
	var gotAmount int64
	var gotCaller services.Caller
	handler := newTestHandler(testDeps{
		ledger: stubLedgerService{
			depositFn: func(_ context.Context, caller services.Caller, accountID string, amount int64, description string) (services.LedgerResult, error) {
				gotAmount = amount
				gotCaller = caller
				return services.LedgerResult{
					Transaction: models.Transaction{ID: "tx-1", Type: models.TransactionDeposit, Amount: amount, Description: "Deposit", AccountID: accountID},
					Balance:     151050,
				}, nil
			},
		},
	})

	rr := serve(t, handler, http.MethodPost, "/accounts/acc-1/deposit", map[string]string{"amount": "1500.50"}, "user-1", models.RoleUser)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotAmount != 150050 {
		t.Fatalf("expected 150050 minor units, got %d", gotAmount)
	}
	if gotCaller.UserID != "user-1" || gotCaller.Role != models.RoleUser {
		t.Fatalf("unexpected caller %+v", gotCaller)
	}
	if body := decodeBody(t, rr); body["balance"] != "1510.50" {
		t.Fatalf("unexpected balance %v", body["balance"])
	}
}

func TestDepositRejectsBadAmounts(t *testing.T) {
	called := false
	handler := newTestHandler(testDeps{
		ledger: stubLedgerService{
			depositFn: func(context.Context, services.Caller, string, int64, string) (services.LedgerResult, error) {
				called = true
				return services.LedgerResult{}, nil
			},
		},
	})

	for _, amount := range []string{"0", "-5", "abc", "1.234", ""} {
		rr := serve(t, handler, http.MethodPost, "/accounts/acc-1/deposit", map[string]string{"amount": amount}, "user-1", models.RoleUser)
		expectError(t, rr, http.StatusBadRequest, "invalid_amount")
	}
	if called {
		t.Fatalf("ledger must not be called for invalid amounts")
	}
}

func TestWithdrawMapsLedgerErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
		{services.ErrUnauthorized, http.StatusForbidden, "forbidden"},
		{services.ErrNotFound, http.StatusNotFound, "not_found"},
		{services.ErrConflict, http.StatusConflict, "conflict"},
	}
	for _, tc := range cases {
		handler := newTestHandler(testDeps{
			ledger: stubLedgerService{
				withdrawFn: func(context.Context, services.Caller, string, int64, string) (services.LedgerResult, error) {
					return services.LedgerResult{}, tc.err
				},
			},
		})
		rr := serve(t, handler, http.MethodPost, "/accounts/acc-1/withdraw", map[string]string{"amount": "10"}, "user-1", models.RoleUser)
		expectError(t, rr, tc.status, tc.code)
	}
}

func TestAccountRoutesRequireToken(t *testing.T) {
	handler := newTestHandler(testDeps{})

	rr := serve(t, handler, http.MethodPost, "/accounts/acc-1/deposit", map[string]string{"amount": "10"}, "", "")

	expectError(t, rr, http.StatusUnauthorized, "missing_token")
}

func TestSelfCheck(t *testing.T) {
	handler := newTestHandler(testDeps{
		accounts: stubAccountStore{
			checkBalanceFn: func(_ context.Context, userID string) ([]store.AccountBalanceCheck, error) {
				return []store.AccountBalanceCheck{{AccountID: "acc-1", UserID: stringPtr(userID), StoredBalance: 500, LedgerSum: 500}}, nil
			},
		},
	})

	rr := serve(t, handler, http.MethodGet, "/accounts/self-check", nil, "user-1", models.RoleUser)

	if rr.Code != http.StatusOK || !containsAll(rr.Body.String(), `"consistent":true`, `"stored_balance":"5.00"`) {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}
}

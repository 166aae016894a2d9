package handlers

import (
	"net/http"

	"sacco/internal/config"
	"sacco/internal/db"
	"sacco/internal/middleware"
	"sacco/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner      db.TxRunner
	cfg           config.Config
	users         UserStore
	accounts      AccountStore
	transactions  TransactionStore
	announcements AnnouncementStore
	audit         AuditStore
	ledger        LedgerService
	loans         LoanService
	verification  VerificationService
	hub           *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, accounts AccountStore, transactions TransactionStore, announcements AnnouncementStore, audit AuditStore, ledger LedgerService, loans LoanService, verification VerificationService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:      txRunner,
		cfg:           cfg,
		users:         users,
		accounts:      accounts,
		transactions:  transactions,
		announcements: announcements,
		audit:         audit,
		ledger:        ledger,
		loans:         loans,
		verification:  verification,
		hub:           hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger())
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.cfg.JWTSecret)
	adminOnly := middleware.RequireAdmin(h.users)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/verify", h.Verify)
		r.Post("/resend-verification", h.ResendVerification)
		r.Post("/password-reset/request", h.RequestPasswordReset)
		r.Post("/password-reset/confirm", h.ConfirmPasswordReset)
		r.With(authenticated).Get("/me", h.Me)
		r.With(authenticated).Post("/change-password", h.ChangePassword)
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/accounts", h.ListAccounts)
		r.Get("/accounts/self-check", h.SelfCheck)
		r.Get("/accounts/{id}", h.GetAccount)
		r.Get("/accounts/{id}/transactions", h.AccountTransactions)
		r.Post("/accounts/{id}/deposit", h.Deposit)
		r.Post("/accounts/{id}/withdraw", h.Withdraw)
		r.Post("/transfers", h.Transfer)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/loans", h.ApplyLoan)
		r.Get("/loans", h.ListLoans)
		r.Get("/loans/{id}", h.GetLoan)
	})
	router.Post("/loans/calculate", h.CalculateLoan)

	router.Get("/announcements", h.ListAnnouncements)
	router.Get("/announcements/{id}", h.GetAnnouncement)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticated)
		r.Use(adminOnly)
		r.Get("/users", h.AdminListUsers)
		r.Post("/users", h.AdminCreateUser)
		r.Get("/users/{id}", h.AdminGetUser)
		r.Delete("/users/{id}", h.AdminDeleteUser)
		r.Get("/accounts", h.AdminListAccounts)
		r.Post("/accounts", h.AdminCreateAccount)
		r.Get("/loans", h.ListLoans)
		r.Post("/loans/{id}/approve", h.ApproveLoan)
		r.Post("/loans/{id}/reject", h.RejectLoan)
		r.Post("/loans/{id}/disburse", h.DisburseLoan)
		r.Post("/announcements", h.CreateAnnouncement)
		r.Put("/announcements/{id}", h.UpdateAnnouncement)
		r.Delete("/announcements/{id}", h.DeleteAnnouncement)
		r.Get("/audit", h.ListAuditLogs)
		r.Get("/reconcile", h.Reconcile)
	})

	router.Get("/ws/balances", h.WSBalances)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

package handlers

import (
	"net/http"
	"strings"

	"sacco/internal/auth"
	"sacco/internal/db"
	"sacco/internal/models"
	"sacco/internal/money"
	"sacco/internal/services"
	"sacco/internal/store"
	"sacco/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(users))
	for _, user := range users {
		payload = append(payload, userWithAccountJSON(user))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) AdminGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userJSON(user))
}

type createUserRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// AdminCreateUser creates a pre-verified user together with their account.
func (h *Handler) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	req.Email = normalizeEmail(req.Email)
	if validator.ValidateName(req.Name) != nil || validator.ValidateEmail(req.Email) != nil || validator.ValidatePassword(req.Password) != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	userID := uuid.NewString()
	var accountID string
	err = h.withAccountNumberRetry(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.Create(r.Context(), tx, store.UserInput{
			ID:            userID,
			Name:          strings.TrimSpace(req.Name),
			Email:         req.Email,
			PasswordHash:  passwordHash,
			Role:          req.Role,
			EmailVerified: true,
		}); err != nil {
			return err
		}
		var err error
		if accountID, err = h.createAccount(r.Context(), tx, &userID); err != nil {
			return err
		}
		return h.logAudit(r.Context(), tx, caller.UserID, "create_user", "user", userID, map[string]string{
			"role": string(req.Role),
		})
	})
	if err != nil {
		if db.IsUniqueViolationOn(err, db.UsersEmailKey) {
			respondError(w, http.StatusConflict, "email_taken")
			return
		}
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"user_id":    userID,
		"account_id": accountID,
	})
}

// AdminDeleteUser removes a user; their account, loans and transactions go
// with them. Admins cannot delete themselves.
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID := chi.URLParam(r, "id")
	if userID == caller.UserID {
		respondError(w, http.StatusBadRequest, "cannot_delete_self")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		deleted, err := h.users.Delete(r.Context(), tx, userID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return services.ErrNotFound
		}
		return h.logAudit(r.Context(), tx, caller.UserID, "delete_user", "user", userID, nil)
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userWithAccountJSON(user store.UserWithAccount) map[string]any {
	payload := userJSON(user.User)
	if user.AccountID != nil {
		balance := int64(0)
		if user.Balance != nil {
			balance = *user.Balance
		}
		payload["account"] = map[string]any{
			"id":             *user.AccountID,
			"account_number": derefString(user.AccountNumber),
			"balance":        money.FormatMinor(balance),
		}
	}
	return payload
}

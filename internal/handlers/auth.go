package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sacco/internal/accountno"
	"sacco/internal/auth"
	"sacco/internal/db"
	"sacco/internal/models"
	"sacco/internal/store"
	"sacco/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if validator.ValidateName(req.Name) != nil || validator.ValidateEmail(req.Email) != nil || validator.ValidatePassword(req.Password) != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	userID := uuid.NewString()
	var role models.Role
	err = h.withAccountNumberRetry(r.Context(), func(tx *sqlx.Tx) error {
		hasAdmin, err := h.users.HasAnyAdmin(r.Context(), tx)
		if err != nil {
			return err
		}
		role = models.RoleUser
		if !hasAdmin {
			role = models.RoleAdmin
		}
		if err := h.users.Create(r.Context(), tx, store.UserInput{
			ID:           userID,
			Name:         strings.TrimSpace(req.Name),
			Email:        req.Email,
			PasswordHash: passwordHash,
			Role:         role,
		}); err != nil {
			return err
		}
		if _, err := h.createAccount(r.Context(), tx, &userID); err != nil {
			return err
		}
		return h.logAudit(r.Context(), tx, userID, "register", "user", userID, map[string]string{
			"role":       string(role),
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
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

	// The account exists either way; a lost email can be resent.
	if err := h.verification.Issue(r.Context(), userID, req.Email, models.CodeRegistration); err != nil {
		zap.L().Warn("registration code not delivered", zap.String("user_id", userID), zap.Error(err))
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id":               userID,
		"role":                  role,
		"requires_verification": true,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	user, err := h.users.GetByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		respondServiceError(w, r, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	if user.Role != models.RoleAdmin {
		if err := h.verification.Issue(r.Context(), user.ID, user.Email, models.CodeLogin); err != nil {
			respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"requires_2fa": true,
			"user_id":      user.ID,
		})
		return
	}
	h.respondToken(w, r, user)
}

type verifyRequest struct {
	UserID string          `json:"user_id"`
	Code   string          `json:"code"`
	Type   models.CodeType `json:"type"`
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	if req.UserID == "" || (req.Type != models.CodeLogin && req.Type != models.CodeRegistration) {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	if err := h.verification.Verify(r.Context(), req.UserID, req.Code, req.Type); err != nil {
		respondServiceError(w, r, err)
		return
	}
	user, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if req.Type == models.CodeLogin {
		h.respondToken(w, r, user)
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.MarkEmailVerified(r.Context(), tx, user.ID); err != nil {
			return err
		}
		return h.logAudit(r.Context(), tx, user.ID, "verify_email", "user", user.ID, nil)
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

type resendRequest struct {
	Email string          `json:"email"`
	Type  models.CodeType `json:"type"`
}

// ResendVerification answers 200 whether or not the email is registered.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	if req.Type == "" {
		req.Type = models.CodeRegistration
	}
	if !req.Type.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	h.issueByEmail(r.Context(), req.Email, req.Type)
	respondJSON(w, http.StatusOK, map[string]string{"message": "if the account exists, a code has been sent"})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	h.issueByEmail(r.Context(), req.Email, models.CodePasswordReset)
	respondJSON(w, http.StatusOK, map[string]string{"message": "if the account exists, a code has been sent"})
}

type passwordResetConfirm struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirm
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	if validator.ValidatePassword(req.NewPassword) != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	user, err := h.users.GetByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusBadRequest, "invalid_code")
			return
		}
		respondServiceError(w, r, err)
		return
	}
	if err := h.verification.Verify(r.Context(), user.ID, req.Code, models.CodePasswordReset); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.setPassword(r.Context(), user.ID, user.ID, req.NewPassword, "reset_password"); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), caller.UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	payload := userJSON(user)
	account, err := h.accounts.GetByUser(r.Context(), user.ID)
	switch {
	case err == nil:
		payload["account"] = accountJSON(account)
	case !errors.Is(err, sql.ErrNoRows):
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

type changePasswordRequest struct {
	UserID          string `json:"user_id"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword lets a member change their own password given the current
// one. Admins may set any user's password by naming user_id.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	if validator.ValidatePassword(req.NewPassword) != nil {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	targetID := req.UserID
	if targetID == "" {
		targetID = caller.UserID
	}

	if targetID != caller.UserID {
		if !caller.IsAdmin() {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		if _, err := h.users.GetByID(r.Context(), targetID); err != nil {
			respondServiceError(w, r, err)
			return
		}
	} else {
		user, err := h.users.GetByID(r.Context(), caller.UserID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
	}

	if err := h.setPassword(r.Context(), caller.UserID, targetID, req.NewPassword, "change_password"); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) respondToken(w http.ResponseWriter, r *http.Request, user models.User) {
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.logAudit(r.Context(), tx, user.ID, "login", "user", user.ID, map[string]string{
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.TokenTTL)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  userJSON(user),
	})
}

func (h *Handler) issueByEmail(ctx context.Context, email string, codeType models.CodeType) {
	user, err := h.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			zap.L().Error("lookup for code issue failed", zap.Error(err))
		}
		return
	}
	if err := h.verification.Issue(ctx, user.ID, user.Email, codeType); err != nil {
		zap.L().Warn("code not delivered",
			zap.String("user_id", user.ID),
			zap.String("type", string(codeType)),
			zap.Error(err),
		)
	}
}

func (h *Handler) setPassword(ctx context.Context, actorID, userID, password, action string) error {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return h.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := h.users.UpdatePassword(ctx, tx, userID, passwordHash); err != nil {
			return err
		}
		return h.logAudit(ctx, tx, actorID, action, "user", userID, nil)
	})
}

// createAccount inserts a zero-balance account with a fresh Luhn number.
func (h *Handler) createAccount(ctx context.Context, tx *sqlx.Tx, userID *string) (string, error) {
	number, err := accountno.Generate()
	if err != nil {
		return "", err
	}
	accountID := uuid.NewString()
	if err := h.accounts.Create(ctx, tx, store.AccountInput{
		ID:            accountID,
		AccountNumber: number,
		UserID:        userID,
	}); err != nil {
		return "", err
	}
	return accountID, nil
}

const accountNumberAttempts = 3

// withAccountNumberRetry runs fn in a transaction and starts it over when the
// generated account number is already taken.
func (h *Handler) withAccountNumberRetry(ctx context.Context, fn func(*sqlx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= accountNumberAttempts; attempt++ {
		err = h.txRunner.WithTx(ctx, fn)
		if !db.IsUniqueViolationOn(err, db.AccountsAccountNumberKey) {
			return err
		}
		zap.L().Warn("account number collision", zap.Int("attempt", attempt))
	}
	return err
}

func (h *Handler) logAudit(ctx context.Context, tx *sqlx.Tx, actorID, action, entityType, entityID string, data any) error {
	payload := "{}"
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = string(raw)
	}
	return h.audit.Log(ctx, tx, actorID, action, entityType, entityID, payload)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

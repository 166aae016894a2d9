package services

import "sacco/internal/models"

// Caller is the authenticated identity on whose behalf an operation runs.
type Caller struct {
	UserID string
	Role   models.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

func (c Caller) canAct(account models.Account) bool {
	return c.IsAdmin() || account.OwnedBy(c.UserID)
}

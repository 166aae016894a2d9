package handlers

import (
	"net/http"
	"strings"

	"sacco/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type announcementRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (req announcementRequest) valid() bool {
	return strings.TrimSpace(req.Title) != "" && strings.TrimSpace(req.Content) != ""
}

func (h *Handler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.announcements.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if announcements == nil {
		announcements = []models.Announcement{}
	}
	respondJSON(w, http.StatusOK, announcements)
}

func (h *Handler) GetAnnouncement(w http.ResponseWriter, r *http.Request) {
	announcement, err := h.announcements.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, announcement)
}

func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req announcementRequest
	if err := decodeJSON(r, &req); err != nil || !req.valid() {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	announcement, err := h.announcements.Create(r.Context(), uuid.NewString(), req.Title, req.Content)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.auditAfter(r, caller.UserID, "create_announcement", announcement.ID)
	respondJSON(w, http.StatusCreated, announcement)
}

func (h *Handler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req announcementRequest
	if err := decodeJSON(r, &req); err != nil || !req.valid() {
		respondError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	announcement, err := h.announcements.Update(r.Context(), chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.auditAfter(r, caller.UserID, "update_announcement", announcement.ID)
	respondJSON(w, http.StatusOK, announcement)
}

func (h *Handler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "id")
	deleted, err := h.announcements.Delete(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if deleted == 0 {
		respondError(w, http.StatusNotFound, "not_found")
		return
	}
	h.auditAfter(r, caller.UserID, "delete_announcement", id)
	w.WriteHeader(http.StatusNoContent)
}

// auditAfter records an announcement change that has already been written.
func (h *Handler) auditAfter(r *http.Request, actorID, action, announcementID string) {
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.logAudit(r.Context(), tx, actorID, action, "announcement", announcementID, nil)
	})
	if err != nil {
		zap.L().Warn("announcement audit failed", zap.String("action", action), zap.Error(err))
	}
}

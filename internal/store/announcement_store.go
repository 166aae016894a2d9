package store

import (
	"context"

	"sacco/internal/models"
)

type AnnouncementStore struct {
	db DB
}

const announcementColumns = `id, title, content, created_at, updated_at`

func NewAnnouncementStore(db DB) *AnnouncementStore {
	return &AnnouncementStore{db: db}
}

func (s *AnnouncementStore) Create(ctx context.Context, id, title, content string) (models.Announcement, error) {
	var row models.Announcement
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO announcements (id, title, content)
		VALUES ($1, $2, $3)
		RETURNING `+announcementColumns,
		id, title, content,
	)
	if err != nil {
		return models.Announcement{}, err
	}
	return row, nil
}

func (s *AnnouncementStore) GetByID(ctx context.Context, id string) (models.Announcement, error) {
	var row models.Announcement
	err := s.db.GetContext(ctx, &row, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id)
	if err != nil {
		return models.Announcement{}, err
	}
	return row, nil
}

func (s *AnnouncementStore) List(ctx context.Context) ([]models.Announcement, error) {
	var rows []models.Announcement
	err := s.db.SelectContext(ctx, &rows, `SELECT `+announcementColumns+` FROM announcements ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AnnouncementStore) Update(ctx context.Context, id, title, content string) (models.Announcement, error) {
	var row models.Announcement
	err := s.db.GetContext(ctx, &row, `
		UPDATE announcements
		SET title = $1, content = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING `+announcementColumns,
		title, content, id,
	)
	if err != nil {
		return models.Announcement{}, err
	}
	return row, nil
}

func (s *AnnouncementStore) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

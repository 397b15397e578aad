package postgres

import (
	"context"
	"fmt"

	"github.com/hd-notes/notes-api/internal/domain"
	"gorm.io/gorm"
)

// NoteRepo stores notes. Every mutating query is scoped to the owner.
type NoteRepo struct {
	db *gorm.DB
}

func NewNoteRepo(db *gorm.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

func (r *NoteRepo) ListByUser(ctx context.Context, userID string) ([]domain.Note, error) {
	notes := []domain.Note{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func (r *NoteRepo) Create(ctx context.Context, n *domain.Note) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// UpdateOwned rewrites title and content of a note owned by userID.
func (r *NoteRepo) UpdateOwned(ctx context.Context, userID, noteID, title, content string) (*domain.Note, error) {
	res := r.db.WithContext(ctx).Model(&domain.Note{}).
		Where("id = ? AND user_id = ?", noteID, userID).
		Updates(map[string]interface{}{
			"title":      title,
			"content":    content,
			"updated_at": r.db.NowFunc(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update note: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNoteNotFound
	}

	var n domain.Note
	if err := r.db.WithContext(ctx).First(&n, "id = ?", noteID).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNoteNotFound
		}
		return nil, fmt.Errorf("reload note: %w", err)
	}
	return &n, nil
}

func (r *NoteRepo) DeleteOwned(ctx context.Context, userID, noteID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", noteID, userID).
		Delete(&domain.Note{})
	if res.Error != nil {
		return fmt.Errorf("delete note: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

func (r *NoteRepo) Ping(ctx context.Context) error {
	return Ping(ctx, r.db)
}

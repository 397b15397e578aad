package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/hd-notes/notes-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepo stores users. Emails arrive already normalized.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// Create inserts a new user. A duplicate email yields a Conflict error.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewError(domain.KindConflict, "user_exists", "User already exists")
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Upsert inserts u or, when the email exists, refreshes its name and date of birth.
// The stored row is returned so callers see the persistent id.
func (r *UserRepo) Upsert(ctx context.Context, u *domain.User) (*domain.User, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "date_of_birth", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return r.GetByEmail(ctx, u.Email)
}

// MarkVerified flips verified to true. It is a no-op for an already verified user.
func (r *UserRepo) MarkVerified(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"verified": true, "updated_at": r.db.NowFunc()})
	if res.Error != nil {
		return fmt.Errorf("mark user verified: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

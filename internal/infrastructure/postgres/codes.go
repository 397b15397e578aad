package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/hd-notes/notes-api/internal/domain"
	"gorm.io/gorm"
)

// CodeRepo stores hashed one-time codes.
type CodeRepo struct {
	db *gorm.DB
}

func NewCodeRepo(db *gorm.DB) *CodeRepo {
	return &CodeRepo{db: db}
}

// Replace retires every unused code for c.Email and inserts c in the same transaction.
// On postgres the transaction holds a per-email advisory lock so concurrent issuers
// for one address run one after the other.
func (r *CodeRepo) Replace(ctx context.Context, c *domain.OneTimeCode) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockEmail(tx, c.Email); err != nil {
			return err
		}
		if err := tx.Model(&domain.OneTimeCode{}).
			Where("email = ? AND used = ?", c.Email, false).
			Update("used", true).Error; err != nil {
			return fmt.Errorf("invalidate codes: %w", err)
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("insert code: %w", err)
		}
		return nil
	})
}

// LatestUnused returns the newest unused code for email, or a NotFound error.
func (r *CodeRepo) LatestUnused(ctx context.Context, email string) (*domain.OneTimeCode, error) {
	var c domain.OneTimeCode
	err := r.db.WithContext(ctx).
		Where("email = ? AND used = ?", email, false).
		Order("created_at DESC").Order("id DESC").
		First(&c).Error
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("no unused code for %s: %w", email, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("latest unused code: %w", err)
	}
	return &c, nil
}

// MarkUsed consumes the code with a single conditional update. It reports false when
// the code was already used, so only one caller can ever win.
func (r *CodeRepo) MarkUsed(ctx context.Context, codeID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.OneTimeCode{}).
		Where("id = ? AND used = ?", codeID, false).
		Update("used", true)
	if res.Error != nil {
		return false, fmt.Errorf("mark code used: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Consume marks c used with a conditional update and, in the same transaction,
// retires every other unused code for c.Email. It reports false when c was already
// used; nothing is changed in that case.
func (r *CodeRepo) Consume(ctx context.Context, c *domain.OneTimeCode) (bool, error) {
	var won bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockEmail(tx, c.Email); err != nil {
			return err
		}
		res := tx.Model(&domain.OneTimeCode{}).
			Where("id = ? AND used = ?", c.ID, false).
			Update("used", true)
		if res.Error != nil {
			return fmt.Errorf("consume code: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return nil
		}
		won = true
		if err := tx.Model(&domain.OneTimeCode{}).
			Where("email = ? AND used = ?", c.Email, false).
			Update("used", true).Error; err != nil {
			return fmt.Errorf("retire sibling codes: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// lockEmail takes a transaction-scoped advisory lock on email. sqlite serializes
// writers on its own, so it is a no-op there.
func lockEmail(tx *gorm.DB, email string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", email).Error; err != nil {
		return fmt.Errorf("lock email: %w", err)
	}
	return nil
}

// PurgeStale deletes codes that are used or expired before the cutoff.
func (r *CodeRepo) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("used = ? OR expires_at < ?", true, before).
		Delete(&domain.OneTimeCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge codes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

package otp

import (
	"context"
	"time"

	"github.com/hd-notes/notes-api/internal/domain"
)

// UserStore is the user half of the Credential Store.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	MarkVerified(ctx context.Context, userID string) error
}

// CodeStore is the one-time code half of the Credential Store.
type CodeStore interface {
	Replace(ctx context.Context, c *domain.OneTimeCode) error
	LatestUnused(ctx context.Context, email string) (*domain.OneTimeCode, error)
	MarkUsed(ctx context.Context, codeID string) (bool, error)
	// Consume marks c used and retires every other unused code for c.Email.
	// False means c was already used.
	Consume(ctx context.Context, c *domain.OneTimeCode) (bool, error)
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

// Dispatcher delivers a plaintext code out of band.
type Dispatcher interface {
	SendCode(ctx context.Context, to, code string, purpose domain.Purpose) error
}

// TokenMinter issues the session token after a successful verification.
type TokenMinter interface {
	Mint(userID, email string) (string, error)
}

package http

import (
	"context"
	"time"

	"github.com/hd-notes/notes-api/internal/application/otp"
	"github.com/hd-notes/notes-api/internal/domain"
	jwtinfra "github.com/hd-notes/notes-api/internal/infrastructure/jwt"
	"go.uber.org/zap"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// Upsert inserts or refreshes name/dateOfBirth keyed by the normalized email.
	Upsert(ctx context.Context, u *domain.User) (*domain.User, error)
	MarkVerified(ctx context.Context, userID string) error
}

// CodeRepository is the minimal interface the router requires from a one-time code store.
type CodeRepository interface {
	Replace(ctx context.Context, c *domain.OneTimeCode) error
	LatestUnused(ctx context.Context, email string) (*domain.OneTimeCode, error)
	// MarkUsed is a conditional update; false means another caller consumed the code first.
	MarkUsed(ctx context.Context, codeID string) (bool, error)
	Consume(ctx context.Context, c *domain.OneTimeCode) (bool, error)
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

// NoteRepository is the minimal interface the router requires from a note store.
type NoteRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Note, error)
	Create(ctx context.Context, n *domain.Note) error
	UpdateOwned(ctx context.Context, userID, noteID, title, content string) (*domain.Note, error)
	DeleteOwned(ctx context.Context, userID, noteID string) error
	Ping(ctx context.Context) error
}

// TokenProvider mints and verifies session bearer tokens.
type TokenProvider interface {
	Mint(userID, email string) (string, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo   UserRepository
	CodeRepo   CodeRepository
	NoteRepo   NoteRepository
	Dispatcher otp.Dispatcher
	Tokens     TokenProvider
	Log        *zap.Logger
}

package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hd-notes/notes-api/internal/domain"
	"go.uber.org/zap"
)

// Verification failure branches. Clients only ever see the wrapped domain error,
// so "no code", "expired" and "already used" are indistinguishable from outside.
var (
	ErrCodeNotFound = fmt.Errorf("otp not found: %w", domain.ErrInvalidOrExpiredCode)
	ErrCodeExpired  = fmt.Errorf("otp expired: %w", domain.ErrInvalidOrExpiredCode)
	ErrCodeConsumed = fmt.Errorf("otp already used: %w", domain.ErrInvalidOrExpiredCode)
	ErrCodeMismatch = fmt.Errorf("otp mismatch: %w", domain.ErrInvalidCode)
)

// Result is returned by a successful verification.
type Result struct {
	Token string
	User  domain.Identity
}

// Verifier checks submitted codes and mints a session token on success.
type Verifier struct {
	users UserStore
	codes CodeStore
	mint  TokenMinter
	log   *zap.Logger
	now   func() time.Time
}

func NewVerifier(users UserStore, codes CodeStore, mint TokenMinter, log *zap.Logger) *Verifier {
	return &Verifier{users: users, codes: codes, mint: mint, log: log, now: time.Now}
}

// Verify consumes the live code for email if it matches. For signup the owning
// user is marked verified; for login the user must already be verified.
// A failed precondition never consumes the code.
func (v *Verifier) Verify(ctx context.Context, email, code string, purpose domain.Purpose) (*Result, error) {
	email = domain.NormalizeEmail(email)

	rec, err := v.codes.LatestUnused(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if rec.Expired(v.now()) {
		return nil, ErrCodeExpired
	}
	if !Matches(rec.CodeHash, strings.TrimSpace(code)) {
		return nil, ErrCodeMismatch
	}

	u, err := v.owner(ctx, rec)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			v.log.Warn("code owner missing", zap.String("code_id", rec.ID), zap.String("email", email))
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if purpose == domain.PurposeLogin && !u.Verified {
		return nil, domain.ErrNotVerified
	}

	ok, err := v.codes.Consume(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCodeConsumed
	}

	if purpose == domain.PurposeSignup && !u.Verified {
		if err := v.users.MarkVerified(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		u.Verified = true
		v.log.Info("user verified", zap.String("user_id", u.ID))
	}

	token, err := v.mint.Mint(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}
	return &Result{Token: token, User: u.Identity()}, nil
}

func (v *Verifier) owner(ctx context.Context, rec *domain.OneTimeCode) (*domain.User, error) {
	if rec.UserID != nil && *rec.UserID != "" {
		return v.users.Get(ctx, *rec.UserID)
	}
	return v.users.GetByEmail(ctx, rec.Email)
}

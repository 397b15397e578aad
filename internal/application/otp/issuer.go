package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hd-notes/notes-api/internal/config"
	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/pkg/id"
	"go.uber.org/zap"
)

// Issuer creates, stores and dispatches one-time codes.
type Issuer struct {
	users    UserStore
	codes    CodeStore
	dispatch Dispatcher
	cfg      config.OTPConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewIssuer(users UserStore, codes CodeStore, dispatch Dispatcher, cfg config.OTPConfig, log *zap.Logger) *Issuer {
	return &Issuer{users: users, codes: codes, dispatch: dispatch, cfg: cfg, log: log, now: time.Now}
}

// Issue sends a fresh code to email. Any code previously issued to the same
// email stops authenticating once this returns successfully.
func (i *Issuer) Issue(ctx context.Context, email string, purpose domain.Purpose) error {
	email = domain.NormalizeEmail(email)

	u, err := i.owner(ctx, email, purpose)
	if err != nil {
		return err
	}

	code, err := Generate(i.cfg.Length)
	if err != nil {
		return err
	}
	hash, err := Hash(code, i.cfg.HashCost)
	if err != nil {
		return err
	}

	now := i.now().UTC()
	rec := &domain.OneTimeCode{
		ID:        id.New(),
		Email:     email,
		CodeHash:  hash,
		Purpose:   purpose,
		ExpiresAt: now.Add(i.cfg.TTL),
		UserID:    &u.ID,
		CreatedAt: now,
	}
	if err := i.codes.Replace(ctx, rec); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	dctx, cancel := context.WithTimeout(ctx, i.cfg.DispatchTimeout)
	defer cancel()
	if err := i.dispatch.SendCode(dctx, email, code, purpose); err != nil {
		i.log.Error("otp dispatch failed",
			zap.String("code_id", rec.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		// The caller is told nothing was sent, so the code must not stay live.
		if _, rerr := i.codes.MarkUsed(context.WithoutCancel(ctx), rec.ID); rerr != nil {
			i.log.Error("failed to retire undelivered code", zap.String("code_id", rec.ID), zap.Error(rerr))
		}
		return fmt.Errorf("%w: %v", domain.ErrCodeDispatch, err)
	}

	i.log.Info("otp issued", zap.String("code_id", rec.ID), zap.String("purpose", string(purpose)))
	return nil
}

// owner resolves the user a code is issued for. Login needs a verified account;
// signup creates an unverified one when none exists.
func (i *Issuer) owner(ctx context.Context, email string, purpose domain.Purpose) (*domain.User, error) {
	u, err := i.users.GetByEmail(ctx, email)
	switch purpose {
	case domain.PurposeLogin:
		if err != nil {
			return nil, err
		}
		if !u.Verified {
			return nil, domain.ErrNotVerified
		}
		return u, nil

	case domain.PurposeSignup:
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err != nil {
			u, err = i.createUser(ctx, email)
			if err != nil {
				return nil, err
			}
		}
		if u.Verified {
			return nil, domain.ErrAlreadyVerified
		}
		return u, nil

	default:
		return nil, domain.Validation(fmt.Sprintf("unknown OTP type %q", purpose))
	}
}

func (i *Issuer) createUser(ctx context.Context, email string) (*domain.User, error) {
	u := &domain.User{ID: id.New(), Email: email}
	err := i.users.Create(ctx, u)
	if err == nil {
		return u, nil
	}
	// Lost a race with a concurrent signup for the same email.
	if errors.Is(err, domain.ErrConflict) {
		return i.users.GetByEmail(ctx, email)
	}
	return nil, err
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hd-notes/notes-api/internal/application/otp"
	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/pkg/id"
	"go.uber.org/zap"
)

// UserStore is the subset of user persistence the auth flows need.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Upsert(ctx context.Context, u *domain.User) (*domain.User, error)
}

// CodeIssuer sends a one-time code for a purpose.
type CodeIssuer interface {
	Issue(ctx context.Context, email string, purpose domain.Purpose) error
}

// CodeVerifier redeems a one-time code for a session token.
type CodeVerifier interface {
	Verify(ctx context.Context, email, code string, purpose domain.Purpose) (*otp.Result, error)
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (userID string, err error)
	SendOTP(ctx context.Context, req domain.SendCodeRequest) error
	Login(ctx context.Context, email string) error
	LoginWithOTP(ctx context.Context, req domain.VerifyCodeRequest) (*otp.Result, error)
	VerifyOTP(ctx context.Context, req domain.VerifyCodeRequest) (*otp.Result, error)
	ResendOTP(ctx context.Context, email string) error
	Me(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	users    UserStore
	issuer   CodeIssuer
	verifier CodeVerifier
	log      *zap.Logger
}

func NewService(users UserStore, issuer CodeIssuer, verifier CodeVerifier, log *zap.Logger) Service {
	return &service{users: users, issuer: issuer, verifier: verifier, log: log}
}

// Register creates or refreshes an unverified account and sends it a signup code.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (string, error) {
	email := domain.NormalizeEmail(req.Email)

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.Verified:
		return "", domain.ErrAlreadyVerified
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return "", err
	}

	u := &domain.User{ID: id.New(), Email: email, Name: strings.TrimSpace(req.Name)}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return "", domain.Validation("dateOfBirth must be a date in YYYY-MM-DD format")
		}
		u.DateOfBirth = &dob
	}

	stored, err := s.users.Upsert(ctx, u)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	if err := s.issuer.Issue(ctx, email, domain.PurposeSignup); err != nil {
		return "", err
	}
	s.log.Info("user registered", zap.String("user_id", stored.ID))
	return stored.ID, nil
}

func (s *service) SendOTP(ctx context.Context, req domain.SendCodeRequest) error {
	purpose, err := domain.ParsePurpose(req.Type)
	if err != nil {
		return err
	}
	return s.issuer.Issue(ctx, req.Email, purpose)
}

// Login is passwordless: it only issues a login code.
func (s *service) Login(ctx context.Context, email string) error {
	return s.issuer.Issue(ctx, email, domain.PurposeLogin)
}

func (s *service) LoginWithOTP(ctx context.Context, req domain.VerifyCodeRequest) (*otp.Result, error) {
	return s.verifier.Verify(ctx, req.Email, req.OTP, domain.PurposeLogin)
}

func (s *service) VerifyOTP(ctx context.Context, req domain.VerifyCodeRequest) (*otp.Result, error) {
	return s.verifier.Verify(ctx, req.Email, req.OTP, domain.PurposeSignup)
}

// ResendOTP issues a new signup code for an existing, unverified account.
func (s *service) ResendOTP(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.Verified {
		return domain.ErrAlreadyVerified
	}
	return s.issuer.Issue(ctx, email, domain.PurposeSignup)
}

func (s *service) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.Get(ctx, userID)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hd-notes/notes-api/internal/application/otp"
	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockAuthSvc) SendOTP(ctx context.Context, req domain.SendCodeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) Login(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthSvc) LoginWithOTP(ctx context.Context, req domain.VerifyCodeRequest) (*otp.Result, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*otp.Result); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyOTP(ctx context.Context, req domain.VerifyCodeRequest) (*otp.Result, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*otp.Result); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ResendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthSvc) Me(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func jsonReq(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return httptest.NewRequest(method, target, bytes.NewReader(body))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

// --- Register ---

func TestRegister_InvalidBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{}, zap.NewNop())
	r := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("not-json"))
	rr := httptest.NewRecorder()
	h.Register(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decodeError(t, rr).Code)
}

func TestRegister_ValidationFailure(t *testing.T) {
	svc := &mockAuthSvc{}
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/auth/register", domain.RegisterRequest{Email: "not-an-email", Name: "Ann"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Error, "email")
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_AlreadyVerified(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return("", domain.ErrAlreadyVerified)
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/auth/register", domain.RegisterRequest{Email: "a@x.com", Name: "Ann"}))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "email_already_verified", decodeError(t, rr).Code)
}

func TestRegister_HappyPath(t *testing.T) {
	svc := &mockAuthSvc{}
	req := domain.RegisterRequest{Email: "a@x.com", Name: "Ann", DateOfBirth: "1990-04-01"}
	svc.On("Register", mock.Anything, req).Return("u1", nil)
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/auth/register", req))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp RegisterEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "u1", resp.UserID)
	assert.NotEmpty(t, resp.Message)
	svc.AssertExpectations(t)
}

func TestRegister_StoreFailureIsGeneric500(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return("", errors.New("pq: connection refused"))
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/auth/register", domain.RegisterRequest{Email: "a@x.com", Name: "Ann"}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	env := decodeError(t, rr)
	assert.Equal(t, "Internal server error", env.Error)
	assert.NotContains(t, env.Error, "pq")
}

func TestRegister_DispatchFailure(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return("", fmt.Errorf("%w: smtp timeout", domain.ErrCodeDispatch))
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/auth/register", domain.RegisterRequest{Email: "a@x.com", Name: "Ann"}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	env := decodeError(t, rr)
	assert.Equal(t, "otp_dispatch_failed", env.Code)
	assert.NotContains(t, env.Error, "smtp")
}

// --- SendOTP / Login ---

func TestSendOTP_InvalidType(t *testing.T) {
	svc := &mockAuthSvc{}
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.SendOTP(rr, jsonReq(t, http.MethodPost, "/auth/send-otp", map[string]string{"email": "a@x.com", "type": "reset"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "SendOTP", mock.Anything, mock.Anything)
}

func TestSendOTP_OK(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SendOTP", mock.Anything, domain.SendCodeRequest{Email: "a@x.com", Type: "login"}).Return(nil)
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.SendOTP(rr, jsonReq(t, http.MethodPost, "/auth/send-otp", domain.SendCodeRequest{Email: "a@x.com", Type: "login"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestLogin_RequiresOTP(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, "a@x.com").Return(nil)
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(t, http.MethodPost, "/auth/login", domain.EmailRequest{Email: "a@x.com"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp LoginEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.RequiresOTP)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, "ghost@x.com").Return(domain.ErrUserNotFound)
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(t, http.MethodPost, "/auth/login", domain.EmailRequest{Email: "ghost@x.com"}))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decodeError(t, rr).Error, "User not found")
}

// --- Verify / LoginWithOTP ---

func TestVerifyOTP_WrongCode(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("VerifyOTP", mock.Anything, mock.Anything).Return(nil, otp.ErrCodeMismatch)
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, jsonReq(t, http.MethodPost, "/auth/verify-otp", domain.VerifyCodeRequest{Email: "a@x.com", OTP: "000000"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeError(t, rr)
	assert.Equal(t, "Invalid OTP", env.Error)
	assert.Equal(t, "invalid_otp", env.Code)
}

func TestVerifyOTP_ExpiredLooksLikeMissing(t *testing.T) {
	for _, err := range []error{otp.ErrCodeExpired, otp.ErrCodeNotFound, otp.ErrCodeConsumed} {
		svc := &mockAuthSvc{}
		svc.On("VerifyOTP", mock.Anything, mock.Anything).Return(nil, err)
		h := NewAuthHandler(svc, zap.NewNop())
		rr := httptest.NewRecorder()
		h.VerifyOTP(rr, jsonReq(t, http.MethodPost, "/auth/verify-otp", domain.VerifyCodeRequest{Email: "a@x.com", OTP: "123456"}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid or expired OTP", decodeError(t, rr).Error)
	}
}

func TestVerifyOTP_HappyPath(t *testing.T) {
	svc := &mockAuthSvc{}
	ident := domain.Identity{UserID: "u1", Email: "a@x.com", Name: "Ann", Verified: true}
	svc.On("VerifyOTP", mock.Anything, domain.VerifyCodeRequest{Email: "a@x.com", OTP: "123456"}).
		Return(&otp.Result{Token: "tok", User: ident}, nil)
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, jsonReq(t, http.MethodPost, "/auth/verify-otp", domain.VerifyCodeRequest{Email: "a@x.com", OTP: "123456"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp TokenEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, ident, resp.User)
	assert.NotEmpty(t, resp.Message)
}

func TestLoginWithOTP_NotVerifiedCarriesHint(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("LoginWithOTP", mock.Anything, mock.Anything).Return(nil, domain.ErrNotVerified)
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.LoginWithOTP(rr, jsonReq(t, http.MethodPost, "/auth/login-otp", domain.VerifyCodeRequest{Email: "a@x.com", OTP: "123456"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeError(t, rr)
	assert.Equal(t, "email_not_verified", env.Code)
	assert.Equal(t, true, env.Details["needsVerification"])
}

func TestLoginWithOTP_NonNumericCodeRejected(t *testing.T) {
	svc := &mockAuthSvc{}
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.LoginWithOTP(rr, jsonReq(t, http.MethodPost, "/auth/login-otp", domain.VerifyCodeRequest{Email: "a@x.com", OTP: "12ab56"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "LoginWithOTP", mock.Anything, mock.Anything)
}

// --- Resend ---

func TestResendOTP_Verified(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ResendOTP", mock.Anything, "a@x.com").Return(domain.ErrAlreadyVerified)
	h := NewAuthHandler(svc, zap.NewNop())
	rr := httptest.NewRecorder()
	h.ResendOTP(rr, jsonReq(t, http.MethodPost, "/auth/resend-otp", domain.EmailRequest{Email: "a@x.com"}))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

// --- Me ---

func TestMe_MissingIdentity(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{}, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/auth/me", nil)) // called directly, no identity in context
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe_ReturnsProfile(t *testing.T) {
	svc := &mockAuthSvc{}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.On("Me", mock.Anything, "u1").Return(&domain.User{ID: "u1", Email: "a@x.com", Name: "Ann", Verified: true, CreatedAt: created}, nil)
	h := NewAuthHandler(svc, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r = r.WithContext(middleware.WithIdentity(r.Context(), domain.Identity{UserID: "u1"}))
	rr := httptest.NewRecorder()
	h.Me(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp ProfileEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, ProfileEnvelope{UserID: "u1", Email: "a@x.com", Name: "Ann", Verified: true, CreatedAt: created}, resp)
}

package handler

import (
	"net/http"

	"github.com/hd-notes/notes-api/internal/application/auth"
	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// AuthHandler handles the passwordless signup and login endpoints.
type AuthHandler struct {
	svc auth.Service
	log *zap.Logger
}

func NewAuthHandler(svc auth.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	userID, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterEnvelope{
		Message: "User registered successfully. Please verify your email with the OTP sent.",
		UserID:  userID,
	})
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.SendCodeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.svc.SendOTP(r.Context(), req); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent successfully"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.svc.Login(r.Context(), req.Email); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{Message: "OTP sent to your email", RequiresOTP: true})
}

func (h *AuthHandler) LoginWithOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyCodeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.svc.LoginWithOTP(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Token: res.Token, User: res.User})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyCodeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Message: "Email verified successfully", Token: res.Token, User: res.User})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.svc.ResendOTP(r.Context(), req.Email); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP resent successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errUnauthenticated)
		return
	}
	u, err := h.svc.Me(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(u))
}

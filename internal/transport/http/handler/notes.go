package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hd-notes/notes-api/internal/application/note"
	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// NoteHandler handles note CRUD for the authenticated user. Every call is scoped
// to the identity injected by the Auth middleware.
type NoteHandler struct {
	svc note.Service
	log *zap.Logger
}

func NewNoteHandler(svc note.Service, log *zap.Logger) *NoteHandler {
	return &NoteHandler{svc: svc, log: log}
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errUnauthenticated)
		return
	}
	notes, err := h.svc.List(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errUnauthenticated)
		return
	}
	var req domain.NoteRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	n, err := h.svc.Create(r.Context(), ident.UserID, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errUnauthenticated)
		return
	}
	var req domain.NoteRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	n, err := h.svc.Update(r.Context(), ident.UserID, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errUnauthenticated)
		return
	}
	if err := h.svc.Delete(r.Context(), ident.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

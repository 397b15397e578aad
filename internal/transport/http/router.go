package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hd-notes/notes-api/internal/application/auth"
	"github.com/hd-notes/notes-api/internal/application/note"
	"github.com/hd-notes/notes-api/internal/application/otp"
	"github.com/hd-notes/notes-api/internal/config"
	"github.com/hd-notes/notes-api/internal/infrastructure/logging"
	"github.com/hd-notes/notes-api/internal/transport/http/handler"
	appmiddleware "github.com/hd-notes/notes-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	log := logging.OrNop(deps.Log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Tokens, deps.UserRepo, log)

	// Applied to the public endpoints that send mail or check codes.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst, cfg.TrustProxy)

	issuer := otp.NewIssuer(deps.UserRepo, deps.CodeRepo, deps.Dispatcher, cfg.OTP, log)
	verifier := otp.NewVerifier(deps.UserRepo, deps.CodeRepo, deps.Tokens, log)
	authSvc := auth.NewService(deps.UserRepo, issuer, verifier, log)
	noteSvc := note.NewService(deps.NoteRepo)

	healthH := handler.NewHealthHandler(deps.NoteRepo, log)
	authH := handler.NewAuthHandler(authSvc, log)
	noteH := handler.NewNoteHandler(noteSvc, log)

	// ── Public routes (no auth) ──────────────────────────────────────────
	r.Get("/health", healthH.Health)
	r.Get("/health-check/{action}", healthH.Ping)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/register", authH.Register)
			r.Post("/send-otp", authH.SendOTP)
			r.Post("/login", authH.Login)
			r.Post("/login-otp", authH.LoginWithOTP)
			r.Post("/verify-otp", authH.VerifyOTP)
			r.Post("/resend-otp", authH.ResendOTP)
		})
		r.With(authMw).Get("/me", authH.Me)
	})

	// ── Authenticated routes ─────────────────────────────────────────────
	r.Route("/notes", func(r chi.Router) {
		r.Use(authMw)
		r.Get("/", noteH.List)
		r.Post("/", noteH.Create)
		r.Put("/{id}", noteH.Update)
		r.Delete("/{id}", noteH.Delete)
	})

	return r
}

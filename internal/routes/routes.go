package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/handlers"
	"github.com/masthead-news/masthead/internal/repositories"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth     *handlers.AuthHandler
	MFA      *handlers.MFAHandler
	Recovery *handlers.RecoveryHandler
	Password *handlers.PasswordHandler
	Audit    *handlers.AuditHandler
}

// RegisterRoutes mounts the auth surface. The verification endpoints take
// no session middleware: the pending-MFA ticket cookie is the only
// credential they require, and the handlers enforce it themselves.
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	accountRepo *repositories.AccountRepository,
	healthCheck http.HandlerFunc,
) {
	router.Get("/health", healthCheck)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Auth.Login)
		r.Post("/refresh", h.Auth.Refresh)
		r.Post("/logout", h.Auth.Logout)

		r.Route("/password", func(r chi.Router) {
			r.Post("/forgot", h.Password.Forgot)
			r.Post("/reset", h.Password.Reset)
		})

		r.Route("/mfa", func(r chi.Router) {
			r.Post("/email/request", h.MFA.RequestEmailCode)
			r.Post("/email/verify", h.MFA.VerifyEmail)
			r.Post("/totp/verify", h.MFA.VerifyTOTP)
			r.Post("/passkey/verify", h.MFA.VerifyPasskey)

			// Enrollment requires a live session.
			r.Group(func(r chi.Router) {
				r.Use(auth.SessionMiddleware(tokenManager))
				r.Post("/setup/totp", h.MFA.SetupTOTP)
				r.Post("/setup/totp/verify", h.MFA.ConfirmTOTP)
				r.Post("/setup/passkey", h.MFA.RegisterPasskey)
			})
		})

		r.Route("/recovery", func(r chi.Router) {
			r.Post("/consume", h.Recovery.Consume)

			r.Group(func(r chi.Router) {
				r.Use(auth.SessionMiddleware(tokenManager))
				r.Use(auth.RequireRole(accountRepo, "owner"))
				r.Post("/generate", h.Recovery.Generate)
			})
		})

		// Audit trail review, owner only.
		r.Group(func(r chi.Router) {
			r.Use(auth.SessionMiddleware(tokenManager))
			r.Use(auth.RequireRole(accountRepo, "owner"))
			r.Get("/audit/{id}", h.Audit.Trail)
		})
	})
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)
		r.Post("/password-strength", apiHandler.PasswordStrengthHandler)

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.SessionMiddleware)

			r.Post("/signup", apiHandler.SignupHandler)
			r.Post("/login", apiHandler.LoginHandler)

			// Logged-in routes; each request counts as activity.
			r.Group(func(r chi.Router) {
				r.Use(apiHandler.RequireAuth)

				r.Post("/logout", apiHandler.LogoutHandler)
				r.Get("/account", apiHandler.AccountHandler)
				r.Post("/account/password", apiHandler.ChangePasswordHandler)
				r.Post("/documents", apiHandler.UploadDocumentsHandler)
				r.Post("/questions", apiHandler.QuestionHandler)
				r.Get("/history", apiHandler.HistoryHandler)
			})
		})
	})

	return r
}

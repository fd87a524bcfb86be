package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bookbotinsight/bookbot/internal/core"
)

const SessionCookieName = "bookbot_session"

type contextKey struct{}

var sessionKey = contextKey{}

// sessionFrom returns the session attached by SessionMiddleware.
func sessionFrom(ctx context.Context) *core.Session {
	sess, _ := ctx.Value(sessionKey).(*core.Session)
	return sess
}

// SessionMiddleware resolves the session cookie to a live session, starting a
// new anonymous one when the cookie is missing, invalid, or refers to a
// session this process no longer knows.
func (h *APIHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *core.Session
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			if id, err := h.tokens.ValidateJWT(cookie.Value); err == nil {
				sess, _ = h.sessions.Get(id)
			}
		}

		if sess == nil {
			sess = h.sessions.New()
			if err := h.setSessionCookie(w, sess); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to start session")
				return
			}
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *APIHandler) setSessionCookie(w http.ResponseWriter, sess *core.Session) error {
	token, err := h.tokens.GenerateJWT(sess.ID)
	if err != nil {
		h.logger.Error("Failed to issue session token", zap.String("session_id", sess.ID), zap.Error(err))
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// RequireAuth gates a route on an authenticated, non-expired session. Passing
// the gate counts as activity.
func (h *APIHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "Please login first")
			return
		}
		if err := h.sessions.CheckTimeout(sess); err != nil {
			if errors.Is(err, core.ErrSessionExpired) {
				writeError(w, http.StatusUnauthorized, msgSessionExpired)
				return
			}
			h.writeServiceError(w, r, err)
			return
		}
		if !sess.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "Please login first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request through zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("HTTP request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

package auth

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionCookieName is the cookie carrying the session token
const SessionCookieName = "danceflow_session"

// Middleware resolves the caller of every request and stores the identity in
// the request context. Anonymous requests pass through with no identity;
// resolver failures abort with 500.
func Middleware(resolver Resolver, log logrus.FieldLogger) func(http.Handler) http.Handler {
	if resolver == nil {
		// No resolver configured: every request is anonymous
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r)
			if err != nil {
				if log != nil {
					log.WithError(err).WithField("path", r.URL.Path).Error("resolving session failed")
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"success":false,"error":"internal server error"}`))
				return
			}

			ctx := r.Context()
			if id != nil {
				ctx = WithIdentity(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CreateSessionCookie creates the session cookie for a freshly issued token
func CreateSessionCookie(token string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		Expires:  expires,
	}
}

// DeleteSessionCookie creates a cookie that deletes the session
func DeleteSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1, // Delete the cookie immediately
	}
}

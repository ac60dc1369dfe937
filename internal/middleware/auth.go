package middleware

import (
	"net/http"

	"cero/internal/auth"
	"cero/internal/session"
)

// SessionCookie is the cookie carrying the opaque session token, the only
// session value the client ever sees.
const SessionCookie = "session_token"

// ResolveSession validates the session cookie, if any, and attaches the
// resolved identity to the request context. A missing or invalid token is
// not an error: the request continues unauthenticated, and route policy
// decides whether that is acceptable.
func ResolveSession(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err == nil && cookie.Value != "" {
				if ac := sessions.Validate(cookie.Value); ac != nil {
					r = r.WithContext(auth.WithAuth(r.Context(), *ac))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects unauthenticated requests with a redirect to the
// login page, never a raw error page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAuthenticated(r.Context()) {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin enforces the admin role. An authenticated non-admin gets a
// 403; an unauthenticated caller gets the login redirect (admin implies
// session).
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAuthenticated(r.Context()) {
			redirectToLogin(w, r)
			return
		}
		if !auth.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

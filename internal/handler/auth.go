package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cero/internal/auth"
	"cero/internal/billing"
	"cero/internal/middleware"
	"cero/internal/session"
	"cero/internal/store"
)

// loginFailedMessage is deliberately identical whether the email exists,
// the password is wrong, or the user is disabled.
const loginFailedMessage = "Invalid email or password"

type AuthHandler struct {
	users        *store.UserStore
	accounts     *store.AccountStore
	audit        *store.AuditStore
	sessions     *session.Manager
	billing      *billing.Engine
	hasher       *auth.Hasher
	cookieMaxAge int
	cookieSecure bool
	renderer     *Renderer
	logger       *slog.Logger
}

func NewAuthHandler(
	users *store.UserStore,
	accounts *store.AccountStore,
	audit *store.AuditStore,
	sessions *session.Manager,
	billingEngine *billing.Engine,
	hasher *auth.Hasher,
	sessionDuration time.Duration,
	cookieSecure bool,
	renderer *Renderer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:        users,
		accounts:     accounts,
		audit:        audit,
		sessions:     sessions,
		billing:      billingEngine,
		hasher:       hasher,
		cookieMaxAge: int(sessionDuration / time.Second),
		cookieSecure: cookieSecure,
		renderer:     renderer,
		logger:       logger,
	}
}

// LoginPage renders the login form; authenticated users go straight to
// the dashboard.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.renderer.render(w, r, "login.html", map[string]any{"Title": "Login"})
}

// Login authenticates email+password and issues a session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderStatus(w, r, http.StatusBadRequest, "login.html", map[string]any{
			"Title": "Login", "Error": "Invalid form data",
		})
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	ip := middleware.RealIP(r)

	if email == "" || password == "" {
		h.renderer.renderStatus(w, r, http.StatusBadRequest, "login.html", map[string]any{
			"Title": "Login", "Error": "Email and password are required",
		})
		return
	}

	user, err := h.users.GetByEmail(email)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	if user == nil || !user.IsActive || !h.hasher.Verify(password, user.PasswordHash) {
		h.logger.Info("failed login", "email", email, "ip", ip)
		if err := h.audit.Append(0, 0, store.AuditLoginFailed, email, ip); err != nil {
			h.logger.Error("audit append", "error", err)
		}
		h.renderer.renderStatus(w, r, http.StatusUnauthorized, "login.html", map[string]any{
			"Title": "Login", "Error": loginFailedMessage,
		})
		return
	}

	if err := h.users.UpdateLastLogin(user.ID, time.Now().UTC()); err != nil {
		h.logger.Error("update last login", "error", err)
	}

	token, err := h.sessions.Create(user.ID, ip, r.UserAgent())
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}

	if err := h.audit.Append(user.ID, user.AccountID, store.AuditLogin, "", ip); err != nil {
		h.logger.Error("audit append", "error", err)
	}

	h.setSessionCookie(w, token)
	h.logger.Info("user logged in", "user_id", user.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout deletes the session and clears the cookie. Always succeeds, even
// with an invalid token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookie); err == nil && cookie.Value != "" {
		h.sessions.Delete(cookie.Value)
	}
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.audit.Append(ac.UserID, ac.AccountID, store.AuditLogout, "", middleware.RealIP(r)); err != nil {
			h.logger.Error("audit append", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SignupPage renders the signup form.
func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	if auth.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.renderer.render(w, r, "signup.html", map[string]any{"Title": "Sign Up"})
}

// Signup provisions a new account: the account row, its first (admin)
// user, and the default free subscription, then logs the user in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderStatus(w, r, http.StatusBadRequest, "signup.html", map[string]any{
			"Title": "Sign Up", "Error": "Invalid form data",
		})
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	ip := middleware.RealIP(r)

	if name == "" || email == "" || len(password) < 8 {
		h.renderer.renderStatus(w, r, http.StatusBadRequest, "signup.html", map[string]any{
			"Title": "Sign Up",
			"Error": "Name, email, and a password of at least 8 characters are required",
		})
		return
	}

	existing, err := h.users.GetByEmail(email)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	if existing != nil {
		h.renderer.renderStatus(w, r, http.StatusConflict, "signup.html", map[string]any{
			"Title": "Sign Up", "Error": "That email is already registered",
		})
		return
	}

	hash, err := h.hasher.Hash(password)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}

	account, err := h.accounts.Create(name)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	user, err := h.users.Create(account.ID, email, hash, "user")
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	if err := h.billing.Provision(account.ID); err != nil {
		h.renderer.serverError(w, r, err)
		return
	}

	if err := h.audit.Append(user.ID, account.ID, store.AuditSignup, "", ip); err != nil {
		h.logger.Error("audit append", "error", err)
	}

	token, err := h.sessions.Create(user.ID, ip, r.UserAgent())
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	h.setSessionCookie(w, token)
	h.logger.Info("account created", "account_id", account.ID, "user_id", user.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   h.cookieMaxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cero/internal/auth"
	"cero/internal/database"
	"cero/internal/session"
	"cero/internal/store"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func withIdentity(r *http.Request, role string) *http.Request {
	ac := auth.Context{UserID: 1, AccountID: 1, Email: "alice@example.com", Role: role, SessionID: 1}
	return r.WithContext(auth.WithAuth(r.Context(), ac))
}

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	handler := RequireAuth(okHandler())

	req := httptest.NewRequest("GET", "/dashboard", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("location = %q, want %q", loc, "/login")
	}
}

func TestRequireAuthPassesAuthenticated(t *testing.T) {
	handler := RequireAuth(okHandler())

	req := withIdentity(httptest.NewRequest("GET", "/dashboard", nil), "user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(okHandler())

	// Anonymous callers get the login redirect
	req := httptest.NewRequest("GET", "/admin/billing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("anonymous: status = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	// Authenticated non-admins get a hard 403, not a redirect
	req = withIdentity(httptest.NewRequest("GET", "/admin/billing", nil), "user")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin: status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	// Admins pass
	req = withIdentity(httptest.NewRequest("GET", "/admin/billing", nil), "admin")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestResolveSession(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := store.NewAccountStore(db)
	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	a, _ := accounts.Create("Acme")
	u, _ := users.Create(a.ID, "alice@example.com", "hash", "user")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := session.NewManager(sessions, users, 7*24*time.Hour, 24*time.Hour, logger)
	token, err := manager.Create(u.ID, "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var seen auth.Context
	var authenticated bool
	handler := ResolveSession(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, authenticated = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Valid cookie resolves to the user's identity
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !authenticated {
		t.Fatal("expected identity to be attached")
	}
	if seen.UserID != u.ID {
		t.Errorf("user_id = %d, want %d", seen.UserID, u.ID)
	}

	// Garbage cookie continues unauthenticated without an error response
	authenticated = false
	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "bogus"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if authenticated {
		t.Error("expected no identity for invalid token")
	}

	// No cookie at all behaves the same
	req = httptest.NewRequest("GET", "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if authenticated {
		t.Error("expected no identity without a cookie")
	}
}

// Package session owns the lifecycle of login sessions: creation,
// validation against both timeout windows, deletion, and the periodic
// sweep of dead rows.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"cero/internal/auth"
	"cero/internal/store"
)

// tokenBytes gives 256 bits of entropy, hex-encoded to 64 characters.
const tokenBytes = 32

type Manager struct {
	sessions   *store.SessionStore
	users      *store.UserStore
	duration   time.Duration
	inactivity time.Duration
	logger     *slog.Logger
}

func NewManager(sessions *store.SessionStore, users *store.UserStore, duration, inactivity time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		sessions:   sessions,
		users:      users,
		duration:   duration,
		inactivity: inactivity,
		logger:     logger,
	}
}

// Create generates a crypto-random token and persists a session with an
// absolute expiry of now + the configured duration.
func (m *Manager) Create(userID int64, ip, userAgent string) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	expiresAt := time.Now().UTC().Add(m.duration)
	if _, err := m.sessions.Create(userID, token, expiresAt, ip, userAgent); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// Validate resolves a token to the owning user's identity. It returns nil
// when the token is unknown, absolutely expired, or inactive past the
// window. A valid lookup bumps last_activity_at (sliding renewal); the
// absolute expiry is never extended. Storage errors are logged and
// reported as no session.
func (m *Manager) Validate(token string) *auth.Context {
	if token == "" {
		return nil
	}

	sess, err := m.sessions.GetByToken(token)
	if err != nil {
		m.logger.Error("session lookup failed", "error", err)
		return nil
	}
	if sess == nil {
		return nil
	}

	now := time.Now().UTC()
	if !now.Before(sess.ExpiresAt) {
		m.logger.Debug("session expired", "session_id", sess.ID)
		return nil
	}
	if now.Sub(sess.LastActivityAt) >= m.inactivity {
		m.logger.Debug("session inactive", "session_id", sess.ID)
		return nil
	}

	user, err := m.users.GetByID(sess.UserID)
	if err != nil {
		m.logger.Error("session user lookup failed", "error", err)
		return nil
	}
	if user == nil || !user.IsActive {
		return nil
	}

	if err := m.sessions.Touch(token, now); err != nil {
		// Renewal is advisory; the session itself is still valid.
		m.logger.Warn("session activity update failed", "error", err)
	}

	return &auth.Context{
		UserID:    user.ID,
		AccountID: user.AccountID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sess.ID,
	}
}

// Delete removes the session for a token. Idempotent: logout succeeds
// even when the token was already invalid.
func (m *Manager) Delete(token string) {
	if token == "" {
		return
	}
	if err := m.sessions.DeleteByToken(token); err != nil {
		m.logger.Error("session delete failed", "error", err)
	}
}

// Sweep deletes all sessions expired or inactive relative to now. Validate
// enforces both windows itself, so the sweep is purely housekeeping.
func (m *Manager) Sweep(now time.Time) (int64, error) {
	return m.sessions.DeleteExpired(now, now.Add(-m.inactivity))
}

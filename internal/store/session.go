package store

import (
	"database/sql"
	"fmt"
	"time"

	"cero/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	err := scanner.Scan(
		&s.ID, &s.UserID, &s.Token, &s.CreatedAt, &s.ExpiresAt,
		&s.LastActivityAt, &s.IPAddress, &s.UserAgent,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const sessionCols = `id, user_id, token, created_at, expires_at, last_activity_at, ip_address, user_agent`

// Create persists a session row. Token generation and expiry policy live
// in the session manager; the store only writes what it is given.
func (s *SessionStore) Create(userID int64, token string, expiresAt time.Time, ip, userAgent string) (*model.Session, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO sessions (user_id, token, created_at, expires_at, last_activity_at, ip_address, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, token, now, expiresAt.UTC(), now, ip, userAgent,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetByToken returns the session row for the token, or nil if absent. It
// does not check expiry; the manager enforces both timeout windows.
func (s *SessionStore) GetByToken(token string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE token = ?`, token)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

// Touch updates last_activity_at. Concurrent requests bearing the same
// token race harmlessly here; last writer wins.
func (s *SessionStore) Touch(token string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET last_activity_at = ? WHERE token = ?`,
		at.UTC(), token,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// DeleteByToken removes a session. Deleting an absent token is not an error.
func (s *SessionStore) DeleteByToken(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes all sessions that are past their absolute expiry
// or inactive since before the cutoff, returning the number deleted.
func (s *SessionStore) DeleteExpired(now, inactivityCutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM sessions WHERE expires_at <= ? OR last_activity_at <= ?`,
		now.UTC(), inactivityCutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"cero/internal/model"
)

// Audit actions.
const (
	AuditLogin              = "login"
	AuditLoginFailed        = "login_failed"
	AuditLogout             = "logout"
	AuditSignup             = "signup"
	AuditSubscriptionChange = "subscription_change"
)

// AuditStore appends to and reads the security audit log. Append-only:
// no update or delete method exists.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append records one security-relevant action. userID and accountID may be
// zero when unknown (failed login for an unknown email).
func (s *AuditStore) Append(userID, accountID int64, action, detail, ip string) error {
	var uid, aid any
	if userID != 0 {
		uid = userID
	}
	if accountID != 0 {
		aid = accountID
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_log (user_id, account_id, action, detail, ip_address, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uid, aid, action, detail, ip, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByAccount returns an account's audit trail in occurrence order.
func (s *AuditStore) ListByAccount(accountID int64, limit int) ([]*model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, user_id, account_id, action, detail, ip_address, occurred_at
		 FROM audit_log WHERE account_id = ? ORDER BY occurred_at ASC, id ASC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var uid, aid sql.NullInt64
		if err := rows.Scan(&e.ID, &uid, &aid, &e.Action, &e.Detail, &e.IPAddress, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if uid.Valid {
			e.UserID = &uid.Int64
		}
		if aid.Valid {
			e.AccountID = &aid.Int64
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"cero/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var plan, status string
	var graceUntil sql.NullTime
	err := scanner.Scan(
		&sub.ID, &sub.AccountID, &plan, &status, &sub.ValidFrom, &sub.ValidUntil,
		&graceUntil, &sub.Provider, &sub.ExternalID, &sub.Notes,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Plan = model.ParsePlan(plan)
	sub.Status = model.ParseStatus(status)
	if graceUntil.Valid {
		sub.GraceUntil = &graceUntil.Time
	}
	return &sub, nil
}

const subscriptionCols = `id, account_id, plan, status, valid_from, valid_until, grace_until, provider, external_id, notes, created_at, updated_at`

// rowQuerier is satisfied by both *sql.DB and *sql.Tx so reads can run
// inside the billing engine's transaction.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getSubscriptionByAccount(q rowQuerier, accountID int64) (*model.Subscription, error) {
	row := q.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE account_id = ?`,
		accountID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by account: %w", err)
	}
	return sub, nil
}

// GetByAccountID returns the account's subscription, or nil when none
// exists. At most one row per account is enforced by a unique index.
func (s *SubscriptionStore) GetByAccountID(accountID int64) (*model.Subscription, error) {
	return getSubscriptionByAccount(s.db, accountID)
}

// GetByAccountIDTx is GetByAccountID inside an open transaction.
func (s *SubscriptionStore) GetByAccountIDTx(tx *sql.Tx, accountID int64) (*model.Subscription, error) {
	return getSubscriptionByAccount(tx, accountID)
}

// UpsertTx writes the subscription row for an account inside tx. Mutation
// only ever happens through the billing engine, which pairs this with a
// ledger append in the same transaction.
func (s *SubscriptionStore) UpsertTx(tx *sql.Tx, accountID int64, plan model.Plan, status model.SubscriptionStatus, validFrom, validUntil time.Time, graceUntil *time.Time, notes string, now time.Time) error {
	var grace any
	if graceUntil != nil {
		grace = graceUntil.UTC()
	}
	_, err := tx.Exec(
		`INSERT INTO subscriptions (account_id, plan, status, valid_from, valid_until, grace_until, provider, external_id, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'manual', '', ?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET
		   plan = excluded.plan,
		   status = excluded.status,
		   valid_until = excluded.valid_until,
		   grace_until = excluded.grace_until,
		   notes = excluded.notes,
		   updated_at = excluded.updated_at`,
		accountID, string(plan), string(status), validFrom.UTC(), validUntil.UTC(),
		grace, notes, now.UTC(), now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

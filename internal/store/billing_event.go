package store

import (
	"database/sql"
	"fmt"

	"cero/internal/model"
)

// BillingEventStore appends to and reads the billing ledger. There is
// deliberately no update or delete method on this type.
type BillingEventStore struct {
	db *sql.DB
}

func NewBillingEventStore(db *sql.DB) *BillingEventStore {
	return &BillingEventStore{db: db}
}

func scanBillingEvent(scanner interface{ Scan(...any) error }) (*model.BillingEvent, error) {
	var e model.BillingEvent
	var adminID sql.NullInt64
	err := scanner.Scan(
		&e.ID, &e.AccountID, &e.EventType, &e.PreviousPlan, &e.NewPlan,
		&e.PreviousStatus, &e.NewStatus, &e.AmountCents, &e.Currency,
		&e.PaymentMethod, &e.ExternalReference, &adminID, &e.Notes, &e.OccurredAt,
	)
	if err != nil {
		return nil, err
	}
	if adminID.Valid {
		e.AdminUserID = &adminID.Int64
	}
	return &e, nil
}

const billingEventCols = `id, account_id, event_type, previous_plan, new_plan, previous_status, new_status, amount_cents, currency, payment_method, external_reference, admin_user_id, notes, occurred_at`

// AppendTx inserts one ledger row inside an open transaction.
func (s *BillingEventStore) AppendTx(tx *sql.Tx, e *model.BillingEvent) error {
	var adminID any
	if e.AdminUserID != nil {
		adminID = *e.AdminUserID
	}
	currency := e.Currency
	if currency == "" {
		currency = "USD"
	}
	_, err := tx.Exec(
		`INSERT INTO billing_events (account_id, event_type, previous_plan, new_plan,
		   previous_status, new_status, amount_cents, currency, payment_method,
		   external_reference, admin_user_id, notes, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AccountID, e.EventType, e.PreviousPlan, e.NewPlan,
		e.PreviousStatus, e.NewStatus, e.AmountCents, currency, e.PaymentMethod,
		e.ExternalReference, adminID, e.Notes, e.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append billing event: %w", err)
	}
	return nil
}

// ListByAccount returns the account's ledger in occurrence order. The full
// entitlement history is reconstructable from this sequence alone.
func (s *BillingEventStore) ListByAccount(accountID int64) ([]*model.BillingEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+billingEventCols+` FROM billing_events WHERE account_id = ? ORDER BY occurred_at ASC, id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list billing events: %w", err)
	}
	defer rows.Close()

	var events []*model.BillingEvent
	for rows.Next() {
		e, err := scanBillingEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan billing event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListRecent returns the newest events across all accounts, for the admin
// billing page.
func (s *BillingEventStore) ListRecent(limit int) ([]*model.BillingEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT `+billingEventCols+` FROM billing_events ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent billing events: %w", err)
	}
	defer rows.Close()

	var events []*model.BillingEvent
	for rows.Next() {
		e, err := scanBillingEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan billing event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByAccount returns the ledger length for an account.
func (s *BillingEventStore) CountByAccount(accountID int64) (int64, error) {
	var n int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM billing_events WHERE account_id = ?`, accountID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count billing events: %w", err)
	}
	return n, nil
}

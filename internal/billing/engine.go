// Package billing is the single mutation path for subscriptions. Every
// change runs as one transaction that upserts the subscription row and
// appends exactly one ledger event; neither write exists without the other.
package billing

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cero/internal/apperr"
	"cero/internal/model"
	"cero/internal/store"
)

type Engine struct {
	db     *sql.DB
	subs   *store.SubscriptionStore
	events *store.BillingEventStore
	logger *slog.Logger
}

func NewEngine(db *sql.DB, subs *store.SubscriptionStore, events *store.BillingEventStore, logger *slog.Logger) *Engine {
	return &Engine{db: db, subs: subs, events: events, logger: logger}
}

// UpdateParams describes one subscription transition. Payment fields are
// zero for plain administrative updates and set by MarkPaid.
type UpdateParams struct {
	AccountID  int64
	NewPlan    model.Plan
	NewStatus  model.SubscriptionStatus
	ValidUntil time.Time

	// GraceUntil, when non-nil, replaces the stored grace deadline.
	// When nil the current value is preserved.
	GraceUntil *time.Time

	// AdminUserID is nil for system-initiated transitions (signup).
	AdminUserID *int64
	Notes       string

	EventType         string
	AmountCents       int64
	Currency          string
	PaymentMethod     string
	ExternalReference string
}

// Update applies one subscription transition atomically. On any failure
// the prior subscription state is left intact and no ledger row exists.
func (e *Engine) Update(p UpdateParams) error {
	if p.AccountID <= 0 {
		return fmt.Errorf("%w: account id required", apperr.ErrInvalidInput)
	}
	if !model.ValidPlan(string(p.NewPlan)) {
		return fmt.Errorf("%w: unknown plan %q", apperr.ErrInvalidInput, p.NewPlan)
	}
	if !model.ValidStatus(string(p.NewStatus)) {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidInput, p.NewStatus)
	}

	eventType := p.EventType
	if eventType == "" {
		eventType = model.EventSubscriptionUpdate
	}

	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", apperr.ErrStorage, err)
	}
	defer tx.Rollback()

	current, err := e.subs.GetByAccountIDTx(tx, p.AccountID)
	if err != nil {
		return fmt.Errorf("%w: read current subscription: %v", apperr.ErrStorage, err)
	}

	now := time.Now().UTC()
	previousPlan, previousStatus := "none", "none"
	validFrom := now
	grace := p.GraceUntil
	if current != nil {
		previousPlan = string(current.Plan)
		previousStatus = string(current.Status)
		validFrom = current.ValidFrom
		if grace == nil {
			grace = current.GraceUntil
		}
	}

	if err := e.subs.UpsertTx(tx, p.AccountID, p.NewPlan, p.NewStatus, validFrom, p.ValidUntil, grace, p.Notes, now); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	event := &model.BillingEvent{
		AccountID:         p.AccountID,
		EventType:         eventType,
		PreviousPlan:      previousPlan,
		NewPlan:           string(p.NewPlan),
		PreviousStatus:    previousStatus,
		NewStatus:         string(p.NewStatus),
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		PaymentMethod:     p.PaymentMethod,
		ExternalReference: p.ExternalReference,
		AdminUserID:       p.AdminUserID,
		Notes:             p.Notes,
		OccurredAt:        now,
	}
	if err := e.events.AppendTx(tx, event); err != nil {
		// A subscription change must never exist without its ledger entry.
		return fmt.Errorf("%w: ledger append: %v", apperr.ErrConsistency, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrStorage, err)
	}

	e.logger.Info("subscription updated",
		"account_id", p.AccountID,
		"previous_plan", previousPlan,
		"new_plan", p.NewPlan,
		"new_status", p.NewStatus,
	)
	return nil
}

// MarkPaid records a manually confirmed payment: the subscription becomes
// active on the given plan for durationDays from now, and the payment
// details land in the same ledger entry as the transition. Nothing here
// verifies that money actually moved; that confirmation is the admin's.
func (e *Engine) MarkPaid(accountID int64, plan model.Plan, durationDays int, amountCents int64, method, reference string, adminUserID int64, notes string) error {
	if durationDays <= 0 {
		return fmt.Errorf("%w: duration must be positive", apperr.ErrInvalidInput)
	}
	if amountCents < 0 {
		return fmt.Errorf("%w: amount must not be negative", apperr.ErrInvalidInput)
	}
	if method == "" {
		method = "manual"
	}
	var admin *int64
	if adminUserID != 0 {
		admin = &adminUserID
	}
	return e.Update(UpdateParams{
		AccountID:         accountID,
		NewPlan:           plan,
		NewStatus:         model.StatusActive,
		ValidUntil:        time.Now().UTC().Add(time.Duration(durationDays) * 24 * time.Hour),
		AdminUserID:       admin,
		Notes:             notes,
		EventType:         model.EventPaymentReceived,
		AmountCents:       amountCents,
		Currency:          "USD",
		PaymentMethod:     method,
		ExternalReference: reference,
	})
}

// Provision creates the initial subscription for a new account: free plan,
// active, valid for a year. System-initiated, so no acting admin.
func (e *Engine) Provision(accountID int64) error {
	return e.Update(UpdateParams{
		AccountID:  accountID,
		NewPlan:    model.PlanFree,
		NewStatus:  model.StatusActive,
		ValidUntil: time.Now().UTC().Add(365 * 24 * time.Hour),
		Notes:      "Initial subscription",
	})
}

// Replay folds an account's ordered ledger into the final (plan, status)
// it implies. The result of replaying the full history always matches the
// stored subscription row.
func Replay(events []*model.BillingEvent) (model.Plan, model.SubscriptionStatus, bool) {
	var plan model.Plan
	var status model.SubscriptionStatus
	found := false
	for _, ev := range events {
		plan = model.ParsePlan(ev.NewPlan)
		status = model.ParseStatus(ev.NewStatus)
		found = true
	}
	return plan, status, found
}

package billing

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cero/internal/apperr"
	"cero/internal/database"
	"cero/internal/entitlement"
	"cero/internal/model"
	"cero/internal/store"
)

func setupEngineTest(t *testing.T) (*Engine, *store.SubscriptionStore, *store.BillingEventStore, *entitlement.Engine, int64, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := store.NewAccountStore(db)
	users := store.NewUserStore(db)
	subs := store.NewSubscriptionStore(db)
	events := store.NewBillingEventStore(db)
	a, err := accounts.Create("Acme")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	admin, err := users.Create(a.ID, "admin@example.com", "hash", "admin")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(db, subs, events, logger)
	entitlements := entitlement.NewEngine(subs, logger)
	return engine, subs, events, entitlements, a.ID, admin.ID
}

func TestUpdateWritesRowAndLedgerTogether(t *testing.T) {
	engine, subs, events, _, accountID, _ := setupEngineTest(t)

	until := time.Now().UTC().Add(30 * 24 * time.Hour)
	err := engine.Update(UpdateParams{
		AccountID:  accountID,
		NewPlan:    model.PlanPro,
		NewStatus:  model.StatusActive,
		ValidUntil: until,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	sub, _ := subs.GetByAccountID(accountID)
	if sub == nil {
		t.Fatal("expected subscription row")
	}
	if sub.Plan != model.PlanPro {
		t.Errorf("plan = %q, want %q", sub.Plan, model.PlanPro)
	}

	ledger, _ := events.ListByAccount(accountID)
	if len(ledger) != 1 {
		t.Fatalf("ledger length = %d, want 1", len(ledger))
	}
	if ledger[0].PreviousPlan != "none" || ledger[0].PreviousStatus != "none" {
		t.Errorf("previous = %q/%q, want none/none", ledger[0].PreviousPlan, ledger[0].PreviousStatus)
	}
	if ledger[0].NewPlan != "pro" || ledger[0].NewStatus != "active" {
		t.Errorf("new = %q/%q, want pro/active", ledger[0].NewPlan, ledger[0].NewStatus)
	}
	if ledger[0].EventType != model.EventSubscriptionUpdate {
		t.Errorf("event_type = %q, want %q", ledger[0].EventType, model.EventSubscriptionUpdate)
	}
}

func TestUpdateSequenceAppendsOneEventEach(t *testing.T) {
	engine, subs, events, _, accountID, _ := setupEngineTest(t)

	until := time.Now().UTC().Add(30 * 24 * time.Hour)
	if err := engine.Provision(accountID); err != nil {
		t.Fatalf("provision: %v", err)
	}
	err := engine.Update(UpdateParams{
		AccountID:  accountID,
		NewPlan:    model.PlanEnterprise,
		NewStatus:  model.StatusActive,
		ValidUntil: until,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	ledger, _ := events.ListByAccount(accountID)
	if len(ledger) != 2 {
		t.Fatalf("ledger length = %d, want 2", len(ledger))
	}
	if ledger[1].PreviousPlan != "free" {
		t.Errorf("previous_plan = %q, want %q", ledger[1].PreviousPlan, "free")
	}

	sub, _ := subs.GetByAccountID(accountID)
	if sub.Plan != model.PlanEnterprise {
		t.Errorf("plan = %q, want %q", sub.Plan, model.PlanEnterprise)
	}
}

func TestUpdateInvalidInputLeavesNoTrace(t *testing.T) {
	engine, subs, events, _, accountID, _ := setupEngineTest(t)

	err := engine.Update(UpdateParams{
		AccountID:  accountID,
		NewPlan:    model.Plan("platinum"),
		NewStatus:  model.StatusActive,
		ValidUntil: time.Now().UTC().Add(time.Hour),
	})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	if sub, _ := subs.GetByAccountID(accountID); sub != nil {
		t.Error("expected no subscription row after rejected update")
	}
	if n, _ := events.CountByAccount(accountID); n != 0 {
		t.Errorf("ledger length = %d, want 0", n)
	}

	err = engine.Update(UpdateParams{
		AccountID:  accountID,
		NewPlan:    model.PlanPro,
		NewStatus:  model.SubscriptionStatus("paused"),
		ValidUntil: time.Now().UTC().Add(time.Hour),
	})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	err = engine.Update(UpdateParams{
		NewPlan:    model.PlanPro,
		NewStatus:  model.StatusActive,
		ValidUntil: time.Now().UTC().Add(time.Hour),
	})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput for missing account", err)
	}
}

func TestMarkPaid(t *testing.T) {
	engine, subs, events, entitlements, accountID, adminID := setupEngineTest(t)

	if err := engine.Provision(accountID); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if entitlements.HasFeature(accountID, entitlement.FeatureCSVExport) {
		t.Fatal("free account should not have csv export yet")
	}

	err := engine.MarkPaid(accountID, model.PlanPro, 30, 4900, "wire", "INV-001", adminID, "monthly invoice")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	sub, _ := subs.GetByAccountID(accountID)
	if sub.Plan != model.PlanPro || sub.Status != model.StatusActive {
		t.Errorf("subscription = %q/%q, want pro/active", sub.Plan, sub.Status)
	}

	ledger, _ := events.ListByAccount(accountID)
	if len(ledger) != 2 {
		t.Fatalf("ledger length = %d, want 2", len(ledger))
	}
	paid := ledger[1]
	if paid.EventType != model.EventPaymentReceived {
		t.Errorf("event_type = %q, want %q", paid.EventType, model.EventPaymentReceived)
	}
	if paid.AmountCents != 4900 || paid.Currency != "USD" {
		t.Errorf("amount = %d %s, want 4900 USD", paid.AmountCents, paid.Currency)
	}
	if paid.PaymentMethod != "wire" || paid.ExternalReference != "INV-001" {
		t.Errorf("payment = %q/%q, want wire/INV-001", paid.PaymentMethod, paid.ExternalReference)
	}
	if paid.AdminUserID == nil || *paid.AdminUserID != adminID {
		t.Errorf("admin_user_id = %v, want %d", paid.AdminUserID, adminID)
	}

	// The payment immediately changes what the account can do
	if !entitlements.HasFeature(accountID, entitlement.FeatureCSVExport) {
		t.Error("expected csv export after upgrade to pro")
	}
}

func TestMarkPaidRejectsBadInput(t *testing.T) {
	engine, _, events, _, accountID, adminID := setupEngineTest(t)

	if err := engine.MarkPaid(accountID, model.PlanPro, 0, 4900, "wire", "", adminID, ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("zero duration: err = %v, want ErrInvalidInput", err)
	}
	if err := engine.MarkPaid(accountID, model.PlanPro, 30, -1, "wire", "", adminID, ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("negative amount: err = %v, want ErrInvalidInput", err)
	}
	if n, _ := events.CountByAccount(accountID); n != 0 {
		t.Errorf("ledger length = %d, want 0", n)
	}
}

func TestProvision(t *testing.T) {
	engine, subs, _, entitlements, accountID, _ := setupEngineTest(t)

	if err := engine.Provision(accountID); err != nil {
		t.Fatalf("provision: %v", err)
	}

	sub, _ := subs.GetByAccountID(accountID)
	if sub == nil {
		t.Fatal("expected subscription row")
	}
	if sub.Plan != model.PlanFree || sub.Status != model.StatusActive {
		t.Errorf("subscription = %q/%q, want free/active", sub.Plan, sub.Status)
	}
	if got := entitlements.MaxReportDays(accountID); got != 7 {
		t.Errorf("max report days = %d, want 7", got)
	}
}

func TestReplayMatchesStoredState(t *testing.T) {
	engine, subs, events, _, accountID, adminID := setupEngineTest(t)

	until := time.Now().UTC().Add(30 * 24 * time.Hour)
	engine.Provision(accountID)
	engine.MarkPaid(accountID, model.PlanPro, 30, 4900, "wire", "", adminID, "")
	engine.Update(UpdateParams{
		AccountID:  accountID,
		NewPlan:    model.PlanPro,
		NewStatus:  model.StatusCancelled,
		ValidUntil: until,
	})

	ledger, _ := events.ListByAccount(accountID)
	plan, status, ok := Replay(ledger)
	if !ok {
		t.Fatal("expected replay to find events")
	}

	sub, _ := subs.GetByAccountID(accountID)
	if plan != sub.Plan {
		t.Errorf("replayed plan = %q, stored %q", plan, sub.Plan)
	}
	if status != sub.Status {
		t.Errorf("replayed status = %q, stored %q", status, sub.Status)
	}
}

func TestReplayEmptyLedger(t *testing.T) {
	if _, _, ok := Replay(nil); ok {
		t.Error("expected no result for empty ledger")
	}
}

func TestUpdatePreservesGraceUntil(t *testing.T) {
	engine, subs, _, _, accountID, _ := setupEngineTest(t)

	until := time.Now().UTC().Add(30 * 24 * time.Hour)
	grace := time.Now().UTC().Add(7 * 24 * time.Hour)
	engine.Update(UpdateParams{
		AccountID:  accountID,
		NewPlan:    model.PlanPro,
		NewStatus:  model.StatusGracePeriod,
		ValidUntil: until,
		GraceUntil: &grace,
	})

	// A later update without an explicit grace deadline keeps the stored one
	engine.Update(UpdateParams{
		AccountID:  accountID,
		NewPlan:    model.PlanPro,
		NewStatus:  model.StatusGracePeriod,
		ValidUntil: until,
	})

	sub, _ := subs.GetByAccountID(accountID)
	if sub.GraceUntil == nil {
		t.Fatal("expected grace_until to be preserved")
	}
	if !sub.GraceUntil.Equal(grace) {
		t.Errorf("grace_until = %v, want %v", sub.GraceUntil, grace)
	}
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	// File-backed database: concurrency behavior is what production sees,
	// with writers queueing on the busy timeout rather than failing
	db, err := database.Open(filepath.Join(t.TempDir(), "cero.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := store.NewAccountStore(db)
	subs := store.NewSubscriptionStore(db)
	events := store.NewBillingEventStore(db)
	a, err := accounts.Create("Acme")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(db, subs, events, logger)

	const writers = 4
	until := time.Now().UTC().Add(30 * 24 * time.Hour)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = engine.Update(UpdateParams{
				AccountID:  a.ID,
				NewPlan:    model.PlanPro,
				NewStatus:  model.StatusActive,
				ValidUntil: until,
			})
		}(i)
	}
	wg.Wait()

	// Every writer commits; none is rejected with a busy error
	for i, err := range errs {
		if err != nil {
			t.Errorf("update %d: %v", i, err)
		}
	}

	// One ledger row per committed update, and the row agrees with the
	// final event
	ledger, err := events.ListByAccount(a.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(ledger) != writers {
		t.Errorf("ledger length = %d, want %d", len(ledger), writers)
	}

	sub, _ := subs.GetByAccountID(a.ID)
	plan, status, ok := Replay(ledger)
	if !ok {
		t.Fatal("expected replay to find events")
	}
	if plan != sub.Plan || status != sub.Status {
		t.Errorf("replayed = %q/%q, stored = %q/%q", plan, status, sub.Plan, sub.Status)
	}
}

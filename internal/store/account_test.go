package store

import (
	"testing"

	"cero/internal/database"
	"cero/internal/model"
)

func setupAccountTestDB(t *testing.T) *AccountStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAccountStore(db)
}

func TestAccountCreate(t *testing.T) {
	as := setupAccountTestDB(t)

	a, err := as.Create("Acme")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if a.Name != "Acme" {
		t.Errorf("name = %q, want %q", a.Name, "Acme")
	}
	if a.Status != model.AccountActive {
		t.Errorf("status = %q, want %q", a.Status, model.AccountActive)
	}
}

func TestAccountGetByIDNotFound(t *testing.T) {
	as := setupAccountTestDB(t)

	a, err := as.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if a != nil {
		t.Error("expected nil for nonexistent id")
	}
}

func TestAccountUpdateStatus(t *testing.T) {
	as := setupAccountTestDB(t)

	a, _ := as.Create("Acme")
	if err := as.UpdateStatus(a.ID, model.AccountSuspended); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, _ := as.GetByID(a.ID)
	if got.Status != model.AccountSuspended {
		t.Errorf("status = %q, want %q", got.Status, model.AccountSuspended)
	}
}

func TestAccountSearch(t *testing.T) {
	as := setupAccountTestDB(t)

	as.Create("Acme Corp")
	as.Create("Beta LLC")
	as.Create("Acme Labs")

	matches, err := as.Search("Acme", 50)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("matches = %d, want 2", len(matches))
	}

	all, err := as.Search("", 50)
	if err != nil {
		t.Fatalf("search empty: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}

package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := Context{
		UserID:    1,
		AccountID: 2,
		Email:     "alice@example.com",
		Role:      "admin",
		SessionID: 3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected identity in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.AccountID != 2 {
		t.Errorf("AccountID = %d, want 2", got.AccountID)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "alice@example.com")
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected false for missing identity")
	}
}

func TestAccessors(t *testing.T) {
	ctx := WithAuth(context.Background(), Context{UserID: 7, AccountID: 42, Role: "user"})

	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
	if AccountID(ctx) != 42 {
		t.Errorf("AccountID = %d, want 42", AccountID(ctx))
	}
	if !IsAuthenticated(ctx) {
		t.Error("expected authenticated")
	}
	if IsAdmin(ctx) {
		t.Error("user role should not be admin")
	}

	empty := context.Background()
	if UserID(empty) != 0 || AccountID(empty) != 0 {
		t.Error("expected zero ids for empty context")
	}
	if IsAuthenticated(empty) || IsAdmin(empty) {
		t.Error("expected unauthenticated for empty context")
	}
}

func TestIsAdmin(t *testing.T) {
	ctx := WithAuth(context.Background(), Context{UserID: 1, Role: "admin"})
	if !IsAdmin(ctx) {
		t.Error("expected admin")
	}
}

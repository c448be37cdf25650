package access

import (
	"context"
	"testing"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/objstore"
)

const adminID = int64(1000)

func newManager(t *testing.T) *Manager {
	t.Helper()
	store, err := objstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return NewManager(store, adminID)
}

func TestAdminAlwaysAllowed(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx := context.Background()

	ok, err := m.IsAllowed(ctx, adminID)
	if err != nil {
		t.Fatalf("IsAllowed(admin) error = %v", err)
	}
	if !ok {
		t.Fatalf("IsAllowed(admin) = false with empty allow-list, want true")
	}
	role, found, err := m.RoleOf(ctx, adminID)
	if err != nil {
		t.Fatalf("RoleOf(admin) error = %v", err)
	}
	if !found || role != RoleAdmin {
		t.Fatalf("RoleOf(admin) = (%q, %v), want (ADMIN, true)", role, found)
	}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx := context.Background()

	ok, err := m.IsAllowed(ctx, 7)
	if err != nil {
		t.Fatalf("IsAllowed() error = %v", err)
	}
	if ok {
		t.Fatalf("IsAllowed(7) = true before Add, want false")
	}

	if err := m.Add(ctx, 7, RoleUser); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := m.Add(ctx, 7, RoleAdmin); err != nil {
		t.Fatalf("Add(upsert) error = %v", err)
	}
	role, found, err := m.RoleOf(ctx, 7)
	if err != nil {
		t.Fatalf("RoleOf() error = %v", err)
	}
	if !found || role != RoleAdmin {
		t.Fatalf("RoleOf(7) = (%q, %v), want (ADMIN, true)", role, found)
	}

	if err := m.Remove(ctx, 7); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := m.Remove(ctx, 7); err != nil {
		t.Fatalf("Remove(again) error = %v, want idempotent nil", err)
	}
	_, found, err = m.RoleOf(ctx, 7)
	if err != nil {
		t.Fatalf("RoleOf() error = %v", err)
	}
	if found {
		t.Fatalf("RoleOf(7) found = true after Remove")
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	if r, err := ParseRole("admin"); err != nil || r != RoleAdmin {
		t.Fatalf("ParseRole(admin) = (%q, %v)", r, err)
	}
	if r, err := ParseRole(""); err != nil || r != RoleUser {
		t.Fatalf("ParseRole(empty) = (%q, %v), want USER", r, err)
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("ParseRole(owner) expected error")
	}
}

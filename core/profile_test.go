package core

import (
	"context"
	"testing"

	"github.com/openlearn/sessionkit/identity"
	memorystore "github.com/openlearn/sessionkit/storage/memory"
)

func TestEnsureProfileCreatesWithDefaultRole(t *testing.T) {
	docs := memorystore.NewDocStore()
	m := NewMaterializer(docs)

	p, err := m.EnsureProfile(context.Background(), identity.Assertion{
		ProviderID:  "native",
		SubjectID:   "u1",
		Email:       "a@b.com",
		DisplayName: "Ada",
	})
	if err != nil {
		t.Fatalf("EnsureProfile failed: %v", err)
	}
	if p.ID != "u1" || p.Role != DefaultRole {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
}

func TestEnsureProfileIsIdempotent(t *testing.T) {
	docs := memorystore.NewDocStore()
	m := NewMaterializer(docs)
	a := identity.Assertion{ProviderID: "native", SubjectID: "u1", Email: "a@b.com"}

	first, err := m.EnsureProfile(context.Background(), a)
	if err != nil {
		t.Fatalf("first EnsureProfile failed: %v", err)
	}
	second, err := m.EnsureProfile(context.Background(), a)
	if err != nil {
		t.Fatalf("second EnsureProfile failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same profile id, got %q and %q", first.ID, second.ID)
	}
	if first.CreatedAt != second.CreatedAt {
		t.Fatalf("second call must return the persisted record unchanged")
	}

	all, err := docs.List(context.Background(), CollectionProfiles)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one persisted profile, got %d", len(all))
	}
}

func TestEnsureProfileNeverClobbersAdminRole(t *testing.T) {
	docs := memorystore.NewDocStore()
	m := NewMaterializer(docs)
	a := identity.Assertion{ProviderID: "native", SubjectID: "u1", Email: "a@b.com"}

	if _, err := m.EnsureProfile(context.Background(), a); err != nil {
		t.Fatalf("EnsureProfile failed: %v", err)
	}
	// Admin elevation happens outside the materialization path.
	if err := docs.Update(context.Background(), CollectionProfiles, "u1", map[string]any{"role": "admin"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	p, err := m.EnsureProfile(context.Background(), a)
	if err != nil {
		t.Fatalf("EnsureProfile after elevation failed: %v", err)
	}
	if p.Role != "admin" {
		t.Fatalf("materialization must not reset role, got %q", p.Role)
	}
}

func TestEnsureProfileRejectsEmptySubject(t *testing.T) {
	m := NewMaterializer(memorystore.NewDocStore())
	if _, err := m.EnsureProfile(context.Background(), identity.Assertion{}); err == nil {
		t.Fatalf("expected error for empty subject id")
	}
}

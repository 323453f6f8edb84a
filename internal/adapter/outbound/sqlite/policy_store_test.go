package sqlite

import (
	"context"
	"testing"

	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{DSN: "file::memory:?cache=shared"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPolicyStore_CreateAndGetLatestActive(t *testing.T) {
	s := NewPolicyStore(newTestDB(t))
	ctx := context.Background()
	maxCost := 100.0

	p, err := s.Create(ctx, "pol-1", policy.Authority{MaxCostTotal: &maxCost}, "default")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Version != 1 || !p.Active {
		t.Fatalf("unexpected created policy: %+v", p)
	}

	got, err := s.GetLatestActive(ctx, "pol-1")
	if err != nil {
		t.Fatalf("GetLatestActive: %v", err)
	}
	if got.Authority.MaxCostTotal == nil || *got.Authority.MaxCostTotal != maxCost {
		t.Fatalf("authority not round-tripped: %+v", got.Authority)
	}
}

func TestPolicyStore_Create_DuplicateIsVersionConflict(t *testing.T) {
	s := NewPolicyStore(newTestDB(t))
	ctx := context.Background()
	if _, err := s.Create(ctx, "pol-1", policy.Authority{}, "default"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, "pol-1", policy.Authority{}, "default"); err != policy.ErrVersionConflict {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestPolicyStore_Update_CreatesNewVersionAndDeactivatesOld(t *testing.T) {
	s := NewPolicyStore(newTestDB(t))
	ctx := context.Background()
	if _, err := s.Create(ctx, "pol-1", policy.Authority{}, "v1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := s.Update(ctx, "pol-1", policy.Authority{}, "v2")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	oldVersion, err := s.GetVersion(ctx, "pol-1", 1)
	if err != nil {
		t.Fatalf("GetVersion(1): %v", err)
	}
	if oldVersion.Active {
		t.Fatalf("version 1 should be deactivated after Update")
	}

	latest, err := s.GetLatestActive(ctx, "pol-1")
	if err != nil {
		t.Fatalf("GetLatestActive: %v", err)
	}
	if latest.Version != 2 || latest.Name != "v2" {
		t.Fatalf("unexpected latest: %+v", latest)
	}
}

func TestPolicyStore_Update_NotFound(t *testing.T) {
	s := NewPolicyStore(newTestDB(t))
	if _, err := s.Update(context.Background(), "missing", policy.Authority{}, "x"); err != policy.ErrPolicyNotFound {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestPolicyStore_Delete_SoftDeletesLatest(t *testing.T) {
	s := NewPolicyStore(newTestDB(t))
	ctx := context.Background()
	if _, err := s.Create(ctx, "pol-1", policy.Authority{}, "v1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, "pol-1", 0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetLatestActive(ctx, "pol-1"); err != policy.ErrPolicyNotFound {
		t.Fatalf("expected ErrPolicyNotFound after delete, got %v", err)
	}
}

func TestPolicyStore_List_ActiveOnly(t *testing.T) {
	s := NewPolicyStore(newTestDB(t))
	ctx := context.Background()
	if _, err := s.Create(ctx, "pol-1", policy.Authority{}, "keep"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, "pol-2", policy.Authority{}, "drop"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, "pol-2", 0); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	active, err := s.List(ctx, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 1 || active[0].PolicyID != "pol-1" {
		t.Fatalf("expected only pol-1 in active list, got %+v", active)
	}

	all, err := s.List(ctx, false)
	if err != nil {
		t.Fatalf("List(all): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both policies in unfiltered list, got %d", len(all))
	}
}

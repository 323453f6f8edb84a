package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

func newTestMandate(id, agentID string, ctx map[string]string, issuedAt time.Time) *mandate.Mandate {
	return &mandate.Mandate{
		MandateID:     id,
		AgentID:       agentID,
		Context:       ctx,
		Authority:     policy.Authority{},
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt.Add(mandate.TTL),
		SchemaVersion: 1,
	}
}

func TestMandateStore_CreateAndGet(t *testing.T) {
	s := NewMandateStore()
	now := time.Now().UTC()
	m := newTestMandate("mnd-1", "agent-1", map[string]string{"k": "v"}, now)

	if err := s.Create(context.Background(), m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(context.Background(), "mnd-1", now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MandateID != "mnd-1" || got.AgentID != "agent-1" {
		t.Fatalf("unexpected mandate: %+v", got)
	}

	// Mutating the returned mandate must not affect the store's copy.
	got.Context["k"] = "tampered"
	again, _ := s.Get(context.Background(), "mnd-1", now)
	if again.Context["k"] != "v" {
		t.Fatalf("store did not defensively copy: got %q", again.Context["k"])
	}
}

func TestMandateStore_Get_NotFound(t *testing.T) {
	s := NewMandateStore()
	_, err := s.Get(context.Background(), "mnd-missing", time.Now().UTC())
	if err != mandate.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMandateStore_Get_ExpiredIsNotFound(t *testing.T) {
	s := NewMandateStore()
	issuedAt := time.Now().UTC().Add(-2 * mandate.TTL)
	m := newTestMandate("mnd-old", "agent-1", nil, issuedAt)
	_ = s.Create(context.Background(), m)

	_, err := s.Get(context.Background(), "mnd-old", time.Now().UTC())
	if err != mandate.ErrNotFound {
		t.Fatalf("expected expired mandate treated as ErrNotFound, got %v", err)
	}
}

func TestMandateStore_FindByAgentAndContext_PrefersNewest(t *testing.T) {
	s := NewMandateStore()
	now := time.Now().UTC()
	ctx := map[string]string{"repo": "payments"}

	old := newTestMandate("mnd-old", "agent-1", ctx, now.Add(-time.Minute))
	newer := newTestMandate("mnd-new", "agent-1", ctx, now)
	_ = s.Create(context.Background(), old)
	_ = s.Create(context.Background(), newer)

	got, err := s.FindByAgentAndContext(context.Background(), "agent-1", ctx, now)
	if err != nil {
		t.Fatalf("FindByAgentAndContext: %v", err)
	}
	if got.MandateID != "mnd-new" {
		t.Fatalf("expected the newest matching mandate, got %s", got.MandateID)
	}
}

func TestMandateStore_FindByAgentAndContext_NoMatch(t *testing.T) {
	s := NewMandateStore()
	now := time.Now().UTC()
	_ = s.Create(context.Background(), newTestMandate("mnd-1", "agent-1", map[string]string{"a": "1"}, now))

	_, err := s.FindByAgentAndContext(context.Background(), "agent-1", map[string]string{"a": "2"}, now)
	if err != mandate.ErrNotFound {
		t.Fatalf("expected ErrNotFound for non-matching context, got %v", err)
	}
}

func TestMandateStore_FindByAgentAndContext_SkipsExpired(t *testing.T) {
	s := NewMandateStore()
	now := time.Now().UTC()
	ctx := map[string]string{"a": "1"}
	_ = s.Create(context.Background(), newTestMandate("mnd-expired", "agent-1", ctx, now.Add(-2*mandate.TTL)))

	_, err := s.FindByAgentAndContext(context.Background(), "agent-1", ctx, now)
	if err != mandate.ErrNotFound {
		t.Fatalf("expected expired mandate to be skipped, got %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/adapter/outbound/memory"
	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
)

func TestMandateService_FindOne(t *testing.T) {
	store := memory.NewMandateStore()
	now := time.Now().UTC()
	m := &mandate.Mandate{MandateID: "mnd-1", AgentID: "agent-1", IssuedAt: now, ExpiresAt: now.Add(mandate.TTL)}
	if err := store.Create(context.Background(), m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc := NewMandateService(store)
	got, err := svc.FindOne(context.Background(), "mnd-1")
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got.MandateID != "mnd-1" {
		t.Fatalf("unexpected mandate: %+v", got)
	}
}

func TestMandateService_FindOne_NotFound(t *testing.T) {
	svc := NewMandateService(memory.NewMandateStore())
	_, err := svc.FindOne(context.Background(), "mnd-missing")
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestMandateService_FindByAgentAndContext(t *testing.T) {
	store := memory.NewMandateStore()
	now := time.Now().UTC()
	ctx := map[string]string{"repo": "payments"}
	m := &mandate.Mandate{MandateID: "mnd-1", AgentID: "agent-1", Context: ctx, IssuedAt: now, ExpiresAt: now.Add(mandate.TTL)}
	_ = store.Create(context.Background(), m)

	svc := NewMandateService(store)
	got, err := svc.FindByAgentAndContext(context.Background(), "agent-1", ctx)
	if err != nil {
		t.Fatalf("FindByAgentAndContext: %v", err)
	}
	if got.MandateID != "mnd-1" {
		t.Fatalf("unexpected mandate: %+v", got)
	}
}

func TestMandateService_FindByAgentAndContext_NoMatch(t *testing.T) {
	svc := NewMandateService(memory.NewMandateStore())
	_, err := svc.FindByAgentAndContext(context.Background(), "agent-1", map[string]string{"repo": "payments"})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

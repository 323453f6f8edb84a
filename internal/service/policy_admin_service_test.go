package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mandate-authority/mandate-authority/internal/adapter/outbound/memory"
	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

func TestPolicyAdminService_CreateAndGet(t *testing.T) {
	svc := NewPolicyAdminService(memory.NewPolicyStore())
	total := 100.0

	p, err := svc.Create(context.Background(), "base policy", policy.Authority{MaxCostTotal: &total})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.PolicyID == "" || p.Version != 1 {
		t.Fatalf("unexpected created policy: %+v", p)
	}

	got, err := svc.Get(context.Background(), p.PolicyID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Version != 1 || !got.Active {
		t.Fatalf("unexpected fetched policy: %+v", got)
	}
}

func TestPolicyAdminService_Create_RequiresName(t *testing.T) {
	svc := NewPolicyAdminService(memory.NewPolicyStore())
	_, err := svc.Create(context.Background(), "", policy.Authority{})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestPolicyAdminService_Update_BumpsVersionAndDeactivatesPrevious(t *testing.T) {
	svc := NewPolicyAdminService(memory.NewPolicyStore())
	p, err := svc.Create(context.Background(), "base policy", policy.Authority{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	total := 50.0
	updated, err := svc.Update(context.Background(), p.PolicyID, "base policy v2", policy.Authority{MaxCostTotal: &total})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	v1, err := svc.GetVersion(context.Background(), p.PolicyID, 1)
	if err != nil {
		t.Fatalf("GetVersion(1): %v", err)
	}
	if v1.Active {
		t.Fatalf("expected version 1 to be deactivated after Update")
	}

	latest, err := svc.Get(context.Background(), p.PolicyID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if latest.Version != 2 {
		t.Fatalf("expected latest active to be version 2, got %d", latest.Version)
	}
}

func TestPolicyAdminService_Update_NotFound(t *testing.T) {
	svc := NewPolicyAdminService(memory.NewPolicyStore())
	_, err := svc.Update(context.Background(), "policy-missing", "name", policy.Authority{})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestPolicyAdminService_Delete(t *testing.T) {
	svc := NewPolicyAdminService(memory.NewPolicyStore())
	p, _ := svc.Create(context.Background(), "base policy", policy.Authority{})

	if err := svc.Delete(context.Background(), p.PolicyID, 0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := svc.Get(context.Background(), p.PolicyID)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindNotFound {
		t.Fatalf("expected policy to be gone after Delete, got %v", err)
	}
}

func TestPolicyAdminService_List_ActiveOnly(t *testing.T) {
	svc := NewPolicyAdminService(memory.NewPolicyStore())
	active, _ := svc.Create(context.Background(), "active policy", policy.Authority{})
	inactive, _ := svc.Create(context.Background(), "inactive policy", policy.Authority{})
	_ = svc.Delete(context.Background(), inactive.PolicyID, 0)

	list, err := svc.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].PolicyID != active.PolicyID {
		t.Fatalf("expected only the active policy, got %+v", list)
	}
}

package service

import (
	"context"
	"errors"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/identifier"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

// PolicyAdminService is the admin CRUD surface over policy.PolicyStore:
// it mints IDs, enforces the versioned-update semantics (every Update
// call produces version+1, never mutates an existing version), and
// translates store sentinels into the api error taxonomy. Grounded on
// the teacher's PolicyAdminService, generalised from single-version
// RBAC policies to spec §3's versioned/immutable policy model.
type PolicyAdminService struct {
	store policy.PolicyStore
}

func NewPolicyAdminService(store policy.PolicyStore) *PolicyAdminService {
	return &PolicyAdminService{store: store}
}

func (s *PolicyAdminService) List(ctx context.Context, activeOnly bool) ([]*policy.Policy, error) {
	return s.store.List(ctx, activeOnly)
}

func (s *PolicyAdminService) Get(ctx context.Context, policyID string) (*policy.Policy, error) {
	p, err := s.store.GetLatestActive(ctx, policyID)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "policy not found")
	}
	return p, nil
}

func (s *PolicyAdminService) GetVersion(ctx context.Context, policyID string, version int) (*policy.Policy, error) {
	p, err := s.store.GetVersion(ctx, policyID, version)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "policy version not found")
	}
	return p, nil
}

func (s *PolicyAdminService) Create(ctx context.Context, name string, authority policy.Authority) (*policy.Policy, error) {
	if name == "" {
		return nil, apierr.New(apierr.KindInvalidInput, "policy name is required")
	}
	policyID, err := identifier.NewPolicyID()
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInvalidInput, "mint policy id", err)
	}
	p, err := s.store.Create(ctx, policyID, authority, name)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStoreUnavailable, "create policy", err)
	}
	return p, nil
}

// Update inserts a new version of policyID, deactivating the previous
// latest version atomically (the store serializes this per spec §5's
// "row-level lock on the latest version before inserting version+1").
func (s *PolicyAdminService) Update(ctx context.Context, policyID, name string, authority policy.Authority) (*policy.Policy, error) {
	p, err := s.store.Update(ctx, policyID, authority, name)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return nil, apierr.New(apierr.KindNotFound, "policy not found")
		}
		return nil, apierr.Wrap(apierr.KindStoreUnavailable, "update policy", err)
	}
	return p, nil
}

func (s *PolicyAdminService) Delete(ctx context.Context, policyID string, version int) error {
	if err := s.store.Delete(ctx, policyID, version); err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return apierr.New(apierr.KindNotFound, "policy not found")
		}
		return apierr.Wrap(apierr.KindStoreUnavailable, "delete policy", err)
	}
	return nil
}

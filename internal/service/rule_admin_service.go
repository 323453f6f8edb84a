package service

import (
	"context"
	"errors"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/identifier"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

// RuleAdminService is the admin CRUD surface over policy.RuleStore,
// mirroring PolicyAdminService's versioned-update handling for rules.
type RuleAdminService struct {
	store policy.RuleStore
}

func NewRuleAdminService(store policy.RuleStore) *RuleAdminService {
	return &RuleAdminService{store: store}
}

func (s *RuleAdminService) ListActive(ctx context.Context) ([]*policy.Rule, error) {
	return s.store.ListActive(ctx)
}

func (s *RuleAdminService) List(ctx context.Context) ([]*policy.Rule, error) {
	return s.store.List(ctx)
}

func (s *RuleAdminService) Get(ctx context.Context, ruleID string) (*policy.Rule, error) {
	r, err := s.store.GetLatestActive(ctx, ruleID)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "rule not found")
	}
	return r, nil
}

func (s *RuleAdminService) Create(ctx context.Context, r policy.Rule) (*policy.Rule, error) {
	if len(r.Conditions) == 0 {
		return nil, apierr.New(apierr.KindInvalidInput, "rule must have at least one condition")
	}
	if r.PolicyID == "" {
		return nil, apierr.New(apierr.KindInvalidInput, "rule must target a policy")
	}
	ruleID, err := identifier.NewRuleID()
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInvalidInput, "mint rule id", err)
	}
	created, err := s.store.Create(ctx, ruleID, r)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStoreUnavailable, "create rule", err)
	}
	return created, nil
}

func (s *RuleAdminService) Update(ctx context.Context, ruleID string, r policy.Rule) (*policy.Rule, error) {
	updated, err := s.store.Update(ctx, ruleID, r)
	if err != nil {
		if errors.Is(err, policy.ErrRuleNotFound) {
			return nil, apierr.New(apierr.KindNotFound, "rule not found")
		}
		return nil, apierr.Wrap(apierr.KindStoreUnavailable, "update rule", err)
	}
	return updated, nil
}

func (s *RuleAdminService) Delete(ctx context.Context, ruleID string) error {
	if err := s.store.Delete(ctx, ruleID); err != nil {
		if errors.Is(err, policy.ErrRuleNotFound) {
			return apierr.New(apierr.KindNotFound, "rule not found")
		}
		return apierr.Wrap(apierr.KindStoreUnavailable, "delete rule", err)
	}
	return nil
}

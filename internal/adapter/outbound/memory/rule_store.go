package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

// RuleStore is an in-memory policy.RuleStore with the same
// all-versions-retained, single-mutex-as-row-lock design as PolicyStore.
type RuleStore struct {
	mu       sync.Mutex
	versions map[string][]*policy.Rule // ruleID -> versions, ascending
	// order is the insertion order of ruleIDs, used as the stable
	// tiebreak spec §4.2 step 6 requires for ListActive.
	order []string
}

func NewRuleStore() *RuleStore {
	return &RuleStore{versions: make(map[string][]*policy.Rule)}
}

func (s *RuleStore) Create(ctx context.Context, ruleID string, r policy.Rule) (*policy.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.versions[ruleID]) > 0 {
		return nil, policy.ErrVersionConflict
	}
	r.RuleID = ruleID
	r.Version = 1
	r.Active = true
	r.CreatedAt = time.Now().UTC()
	stored := cloneRule(&r)
	s.versions[ruleID] = append(s.versions[ruleID], stored)
	s.order = append(s.order, ruleID)
	return cloneRule(stored), nil
}

func (s *RuleStore) Update(ctx context.Context, ruleID string, r policy.Rule) (*policy.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.versions[ruleID]
	if len(vs) == 0 {
		return nil, policy.ErrRuleNotFound
	}
	latest := vs[len(vs)-1]
	latest.Active = false
	r.RuleID = ruleID
	r.Version = latest.Version + 1
	r.Active = true
	r.CreatedAt = time.Now().UTC()
	stored := cloneRule(&r)
	s.versions[ruleID] = append(vs, stored)
	return cloneRule(stored), nil
}

func (s *RuleStore) GetLatestActive(ctx context.Context, ruleID string) (*policy.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.versions[ruleID]
	if len(vs) == 0 {
		return nil, policy.ErrRuleNotFound
	}
	latest := vs[len(vs)-1]
	if !latest.Active {
		return nil, policy.ErrRuleNotFound
	}
	return cloneRule(latest), nil
}

func (s *RuleStore) ListActive(ctx context.Context) ([]*policy.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*policy.Rule, 0, len(s.order))
	for _, id := range s.order {
		vs := s.versions[id]
		if len(vs) == 0 {
			continue
		}
		latest := vs[len(vs)-1]
		if latest.Active {
			out = append(out, cloneRule(latest))
		}
	}
	return out, nil
}

func (s *RuleStore) List(ctx context.Context) ([]*policy.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*policy.Rule, 0, len(s.order))
	for _, id := range s.order {
		vs := s.versions[id]
		if len(vs) == 0 {
			continue
		}
		out = append(out, cloneRule(vs[len(vs)-1]))
	}
	return out, nil
}

func (s *RuleStore) Delete(ctx context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.versions[ruleID]
	if len(vs) == 0 {
		return policy.ErrRuleNotFound
	}
	vs[len(vs)-1].Active = false
	return nil
}

func cloneRule(r *policy.Rule) *policy.Rule {
	out := *r
	out.Conditions = append([]policy.Condition(nil), r.Conditions...)
	out.AgentIDs = append([]string(nil), r.AgentIDs...)
	return &out
}

var _ policy.RuleStore = (*RuleStore)(nil)

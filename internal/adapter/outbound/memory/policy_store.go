package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

// PolicyStore is an in-memory policy.PolicyStore. Every version ever
// created is retained (P7/P8); a single mutex stands in for the
// transactional row-lock-on-latest-version spec §5 requires of a real
// backend, since there is only one process sharing this map.
type PolicyStore struct {
	mu       sync.Mutex
	versions map[string][]*policy.Policy // policyID -> versions, ascending
}

func NewPolicyStore() *PolicyStore {
	return &PolicyStore{versions: make(map[string][]*policy.Policy)}
}

func (s *PolicyStore) Create(ctx context.Context, policyID string, authority policy.Authority, name string) (*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.versions[policyID]) > 0 {
		return nil, policy.ErrVersionConflict
	}
	p := &policy.Policy{
		PolicyID:  policyID,
		Version:   1,
		Name:      name,
		Authority: authority.Clone(),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	s.versions[policyID] = append(s.versions[policyID], p)
	return clonePolicy(p), nil
}

func (s *PolicyStore) Update(ctx context.Context, policyID string, authority policy.Authority, name string) (*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.versions[policyID]
	if len(vs) == 0 {
		return nil, policy.ErrPolicyNotFound
	}
	latest := vs[len(vs)-1]
	latest.Active = false
	next := &policy.Policy{
		PolicyID:  policyID,
		Version:   latest.Version + 1,
		Name:      name,
		Authority: authority.Clone(),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	s.versions[policyID] = append(vs, next)
	return clonePolicy(next), nil
}

func (s *PolicyStore) GetLatestActive(ctx context.Context, policyID string) (*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.versions[policyID]
	if len(vs) == 0 {
		return nil, policy.ErrPolicyNotFound
	}
	latest := vs[len(vs)-1]
	if !latest.Active {
		return nil, policy.ErrPolicyNotFound
	}
	return clonePolicy(latest), nil
}

func (s *PolicyStore) GetVersion(ctx context.Context, policyID string, version int) (*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.versions[policyID] {
		if p.Version == version {
			return clonePolicy(p), nil
		}
	}
	return nil, policy.ErrPolicyNotFound
}

func (s *PolicyStore) List(ctx context.Context, activeOnly bool) ([]*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*policy.Policy, 0, len(s.versions))
	for _, vs := range s.versions {
		if len(vs) == 0 {
			continue
		}
		latest := vs[len(vs)-1]
		if activeOnly && !latest.Active {
			continue
		}
		out = append(out, clonePolicy(latest))
	}
	return out, nil
}

func (s *PolicyStore) Delete(ctx context.Context, policyID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.versions[policyID]
	if len(vs) == 0 {
		return policy.ErrPolicyNotFound
	}
	if version == 0 {
		vs[len(vs)-1].Active = false
		return nil
	}
	for _, p := range vs {
		if p.Version == version {
			p.Active = false
			return nil
		}
	}
	return policy.ErrPolicyNotFound
}

func clonePolicy(p *policy.Policy) *policy.Policy {
	out := *p
	out.Authority = p.Authority.Clone()
	return &out
}

var _ policy.PolicyStore = (*PolicyStore)(nil)

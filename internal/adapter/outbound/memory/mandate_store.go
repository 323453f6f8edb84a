package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
)

// MandateStore is the in-memory mandate.Store: mandates never mutate
// and TTL-expire on read, so a plain map with an expiry check on Get
// is sufficient — no background reaper is required by spec §4.4.
type MandateStore struct {
	mu       sync.Mutex
	mandates map[string]*mandate.Mandate
	byAgent  map[string][]string // agentID -> mandateIDs, newest last
}

func NewMandateStore() *MandateStore {
	return &MandateStore{
		mandates: make(map[string]*mandate.Mandate),
		byAgent:  make(map[string][]string),
	}
}

func cloneMandate(m *mandate.Mandate) *mandate.Mandate {
	out := *m
	out.Context = make(map[string]string, len(m.Context))
	for k, v := range m.Context {
		out.Context[k] = v
	}
	out.Authority = m.Authority.Clone()
	out.MatchedRules = append([]mandate.RuleRef(nil), m.MatchedRules...)
	out.AppliedPolicies = append([]mandate.PolicyRef(nil), m.AppliedPolicies...)
	return &out
}

func (s *MandateStore) Create(ctx context.Context, m *mandate.Mandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneMandate(m)
	s.mandates[m.MandateID] = stored
	s.byAgent[m.AgentID] = append(s.byAgent[m.AgentID], m.MandateID)
	return nil
}

func (s *MandateStore) Get(ctx context.Context, mandateID string, now time.Time) (*mandate.Mandate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mandates[mandateID]
	if !ok || m.IsExpired(now) {
		return nil, mandate.ErrNotFound
	}
	return cloneMandate(m), nil
}

func (s *MandateStore) FindByAgentAndContext(ctx context.Context, agentID string, context map[string]string, now time.Time) (*mandate.Mandate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byAgent[agentID]
	for i := len(ids) - 1; i >= 0; i-- {
		m, ok := s.mandates[ids[i]]
		if !ok || m.IsExpired(now) {
			continue
		}
		if contextEqual(m.Context, context) {
			return cloneMandate(m), nil
		}
	}
	return nil, mandate.ErrNotFound
}

func contextEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

var _ mandate.Store = (*MandateStore)(nil)

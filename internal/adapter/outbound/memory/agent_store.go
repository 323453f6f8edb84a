// Package memory provides in-memory outbound adapters for development
// and tests. Grounded on the teacher's memory package: per-store mutex
// guarding a map, defensive copies on every read/write, and a
// compile-time interface assertion at the bottom of each file.
package memory

import (
	"context"
	"sync"

	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
)

// AgentStore is an in-memory agent.Store keyed by agentID, with a
// secondary index on API-key hash for bearer-token lookup.
type AgentStore struct {
	mu        sync.RWMutex
	agents    map[string]*agent.Agent
	byKeyHash map[string]string // keyHash -> agentID
}

// NewAgentStore creates an empty in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{
		agents:    make(map[string]*agent.Agent),
		byKeyHash: make(map[string]string),
	}
}

func copyAgent(a *agent.Agent) *agent.Agent {
	out := *a
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func (s *AgentStore) Create(ctx context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.AgentID]; ok {
		return agent.ErrAlreadyExists
	}
	s.agents[a.AgentID] = copyAgent(a)
	s.byKeyHash[a.APIKeyHash] = a.AgentID
	return nil
}

func (s *AgentStore) Get(ctx context.Context, agentID string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agentID]
	if !ok {
		return nil, agent.ErrNotFound
	}
	return copyAgent(a), nil
}

func (s *AgentStore) GetByAPIKeyHash(ctx context.Context, keyHash string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKeyHash[keyHash]
	if !ok {
		return nil, agent.ErrKeyNotFound
	}
	return copyAgent(s.agents[id]), nil
}

func (s *AgentStore) List(ctx context.Context) ([]*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, copyAgent(a))
	}
	return out, nil
}

func (s *AgentStore) Update(ctx context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.agents[a.AgentID]
	if !ok {
		return agent.ErrNotFound
	}
	updated := copyAgent(a)
	updated.APIKeyHash = existing.APIKeyHash
	updated.Environment = existing.Environment
	updated.CreatedAt = existing.CreatedAt
	s.agents[a.AgentID] = updated
	return nil
}

func (s *AgentStore) SetStatus(ctx context.Context, agentID string, status agent.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return agent.ErrNotFound
	}
	a.Status = status
	return nil
}

var _ agent.Store = (*AgentStore)(nil)

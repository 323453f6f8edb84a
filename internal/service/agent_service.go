package service

import (
	"context"
	"errors"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
	"github.com/mandate-authority/mandate-authority/internal/domain/identifier"
)

// AgentService is the admin-facing CRUD surface over agent.Store. Key
// minting happens here, not in the store: the raw key is generated
// once, hashed for storage, and returned to the caller exactly once.
type AgentService struct {
	store agent.Store
}

func NewAgentService(store agent.Store) *AgentService {
	return &AgentService{store: store}
}

// RegisteredAgent pairs a persisted Agent with the one-time raw API
// key minted for it.
type RegisteredAgent struct {
	Agent  *agent.Agent
	APIKey string
}

func (s *AgentService) Register(ctx context.Context, displayName, principal string, env agent.Environment, metadata map[string]string) (*RegisteredAgent, error) {
	if !env.IsValid() {
		return nil, apierr.New(apierr.KindInvalidInput, "unknown environment")
	}

	agentID, err := identifier.NewAgentID()
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInvalidInput, "mint agent id", err)
	}
	rawKey, err := identifier.NewAPIKey()
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInvalidInput, "mint api key", err)
	}

	now := time.Now().UTC()
	a := &agent.Agent{
		AgentID:     agentID,
		APIKeyHash:  identifier.HashAPIKey(rawKey),
		DisplayName: displayName,
		Principal:   principal,
		Environment: env,
		Status:      agent.StatusActive,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, agent.ErrAlreadyExists) {
			return nil, apierr.New(apierr.KindConflict, "agent already exists")
		}
		return nil, apierr.Wrap(apierr.KindStoreUnavailable, "create agent", err)
	}

	return &RegisteredAgent{Agent: a, APIKey: rawKey}, nil
}

func (s *AgentService) Get(ctx context.Context, agentID string) (*agent.Agent, error) {
	a, err := s.store.Get(ctx, agentID)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "agent not found")
	}
	return a, nil
}

func (s *AgentService) List(ctx context.Context) ([]*agent.Agent, error) {
	return s.store.List(ctx)
}

func (s *AgentService) Update(ctx context.Context, a *agent.Agent) error {
	a.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, a); err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			return apierr.New(apierr.KindNotFound, "agent not found")
		}
		return apierr.Wrap(apierr.KindStoreUnavailable, "update agent", err)
	}
	return nil
}

// Authenticate resolves a bearer token's raw key to its agent, per
// spec §6's `sk-<32chars>` bearer scheme.
func (s *AgentService) Authenticate(ctx context.Context, rawKey string) (*agent.Agent, error) {
	a, err := s.store.GetByAPIKeyHash(ctx, identifier.HashAPIKey(rawKey))
	if err != nil {
		return nil, apierr.New(apierr.KindUnauthorized, "unknown api key")
	}
	return a, nil
}

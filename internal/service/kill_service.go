package service

import (
	"context"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
	"github.com/mandate-authority/mandate-authority/internal/domain/kill"
)

// KillService coordinates the durable kill registry (C9) with the
// agent store's status field, per spec §4.8 ("flips agent status to
// inactive as a side effect"). This cross-store coordination belongs
// here rather than inside the registry itself, since the registry's
// store contract has no knowledge of agent.Store.
type KillService struct {
	registry kill.Registry
	agents   agent.Store
}

func NewKillService(registry kill.Registry, agents agent.Store) *KillService {
	return &KillService{registry: registry, agents: agents}
}

// Kill records the kill and deactivates the agent. It does not, by
// itself, propagate to any live state-manager mandate — that fan-out
// is the caller's responsibility (e.g. the HTTP handler also calling
// state.Manager.Kill for every mandate it tracks live), since the
// registry only knows about agents, not in-flight mandates.
func (s *KillService) Kill(ctx context.Context, agentID, reason, killedBy string) error {
	if err := s.registry.Kill(ctx, agentID, reason, killedBy); err != nil {
		return apierr.Wrap(apierr.KindStoreUnavailable, "record kill", err)
	}
	if err := s.agents.SetStatus(ctx, agentID, agent.StatusInactive); err != nil {
		return apierr.Wrap(apierr.KindStoreUnavailable, "deactivate agent", err)
	}
	return nil
}

func (s *KillService) Resurrect(ctx context.Context, agentID string) error {
	if err := s.registry.Resurrect(ctx, agentID); err != nil {
		return apierr.Wrap(apierr.KindStoreUnavailable, "resurrect agent", err)
	}
	if err := s.agents.SetStatus(ctx, agentID, agent.StatusActive); err != nil {
		return apierr.Wrap(apierr.KindStoreUnavailable, "reactivate agent", err)
	}
	return nil
}

func (s *KillService) IsKilled(ctx context.Context, agentID string) (bool, error) {
	return s.registry.IsKilled(ctx, agentID)
}

func (s *KillService) Status(ctx context.Context, agentID string) (*kill.Entry, error) {
	e, err := s.registry.Status(ctx, agentID)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "agent is not killed")
	}
	return e, nil
}

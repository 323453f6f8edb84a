package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/kill"
)

// KillRegistry is the in-memory kill.Registry: a kill entry's mere
// presence in the map means the agent is killed.
type KillRegistry struct {
	mu      sync.Mutex
	entries map[string]kill.Entry
}

func NewKillRegistry() *KillRegistry {
	return &KillRegistry{entries: make(map[string]kill.Entry)}
}

func (r *KillRegistry) Kill(ctx context.Context, agentID, reason, killedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[agentID] = kill.Entry{
		AgentID:  agentID,
		KilledAt: time.Now().UTC(),
		Reason:   reason,
		KilledBy: killedBy,
	}
	return nil
}

func (r *KillRegistry) IsKilled(ctx context.Context, agentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[agentID]
	return ok, nil
}

func (r *KillRegistry) Status(ctx context.Context, agentID string) (*kill.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[agentID]
	if !ok {
		return nil, kill.ErrNotKilled
	}
	return &e, nil
}

func (r *KillRegistry) Resurrect(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, agentID)
	return nil
}

var _ kill.Registry = (*KillRegistry)(nil)

// Package memorystate implements the C10 state manager's memory
// backend: a per-key mutex serialises CheckAndCommit and Kill, exactly
// as spec §4.7 prescribes ("a per-key mutex, or equivalent
// single-owner lane"). Grounded on the teacher's in-memory store
// pattern (map + mutex + defensive copy on read).
package memorystate

import (
	"context"
	"sync"

	"github.com/mandate-authority/mandate-authority/internal/domain/state"
)

type key struct {
	agentID   string
	mandateID string
}

type entry struct {
	mu        sync.Mutex
	state     state.State
	listeners map[int]state.KillHandler
	nextID    int
}

// Manager is the in-memory state.Manager. It is process-local: kill
// propagation to other processes requires the distributed backend
// (see internal/adapter/outbound/redisstate).
type Manager struct {
	mu      sync.Mutex
	entries map[key]*entry
}

func New() *Manager {
	return &Manager{entries: make(map[key]*entry)}
}

func (m *Manager) entryFor(agentID, mandateID string) *entry {
	k := key{agentID, mandateID}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	if !ok {
		e = &entry{
			state:     state.State{AgentID: agentID, MandateID: mandateID, ToolCallCounts: map[string]int{}, Windows: map[string]state.Window{}, SeenActionIDs: map[string]bool{}},
			listeners: make(map[int]state.KillHandler),
		}
		m.entries[k] = e
	}
	return e
}

func (m *Manager) Get(ctx context.Context, agentID, mandateID string) (state.State, error) {
	e := m.entryFor(agentID, mandateID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), nil
}

func (m *Manager) CheckAndCommit(ctx context.Context, agentID, mandateID string, change state.Change) (state.Result, error) {
	e := m.entryFor(agentID, mandateID)
	e.mu.Lock()
	defer e.mu.Unlock()

	result := state.Decide(e.state, change)
	if result.Accepted {
		e.state = result.State
	}
	return result, nil
}

func (m *Manager) Kill(ctx context.Context, agentID, mandateID, reason string) error {
	e := m.entryFor(agentID, mandateID)
	e.mu.Lock()
	e.state.Killed = true
	listeners := make([]state.KillHandler, 0, len(e.listeners))
	for _, h := range e.listeners {
		listeners = append(listeners, h)
	}
	e.mu.Unlock()

	for _, h := range listeners {
		h(agentID, mandateID, reason)
	}
	return nil
}

func (m *Manager) IsKilled(ctx context.Context, agentID, mandateID string) (bool, error) {
	e := m.entryFor(agentID, mandateID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Killed, nil
}

func (m *Manager) SubscribeKill(ctx context.Context, agentID, mandateID string, handler state.KillHandler) (func(), error) {
	e := m.entryFor(agentID, mandateID)
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = handler
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}, nil
}

func (m *Manager) Close() error { return nil }

var _ state.Manager = (*Manager)(nil)

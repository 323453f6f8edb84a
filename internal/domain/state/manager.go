package state

import "context"

// KillHandler is invoked when a kill is observed for a subscribed
// (agentId, mandateId) pair, whether originated locally or propagated
// from another executor via the distributed backend's pub/sub channel.
type KillHandler func(agentID, mandateID, reason string)

// Manager is the C10 state manager contract shared by the memory and
// distributed backends. Backend selection is policy, not mechanism:
// the two-phase executor (C12) is unchanged by which Manager it is
// wired to.
type Manager interface {
	// Get returns an immutable snapshot of the current state for
	// (agentID, mandateID). A key with no prior activity returns a
	// zero-valued State, not an error.
	Get(ctx context.Context, agentID, mandateID string) (State, error)

	// CheckAndCommit atomically evaluates and, if accepted, applies
	// change. MUST be atomic with respect to concurrent calls for the
	// same (agentID, mandateID) (P1, P2, P3).
	CheckAndCommit(ctx context.Context, agentID, mandateID string, change Change) (Result, error)

	// Kill sets the killed bit for (agentID, mandateID), idempotently,
	// and propagates to every subscribed executor within bounded
	// latency (P6).
	Kill(ctx context.Context, agentID, mandateID, reason string) error

	// IsKilled reports the current killed bit.
	IsKilled(ctx context.Context, agentID, mandateID string) (bool, error)

	// SubscribeKill registers handler to be invoked whenever a kill is
	// observed for (agentID, mandateID). Returns an unsubscribe func.
	// If the underlying subscription link cannot be established (or is
	// later lost, for the distributed backend), implementations MUST
	// fail closed: every subsequent mutating call for that key is
	// rejected with RejectStoreUnavailable rather than silently risk
	// missing a kill.
	SubscribeKill(ctx context.Context, agentID, mandateID string, handler KillHandler) (unsubscribe func(), err error)

	// Close releases resources (connections, subscriber goroutines).
	Close() error
}

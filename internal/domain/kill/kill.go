// Package kill implements the per-agent kill registry (C9): a kill
// entry's mere existence means the agent is killed. Grounded on the
// teacher's auth package convention of a small sentinel-error-bearing
// domain package with a store interface owned here to avoid an import
// cycle with its adapters.
package kill

import (
	"context"
	"errors"
	"time"
)

var ErrNotKilled = errors.New("agent is not killed")

// Entry records that an agent has been killed.
type Entry struct {
	AgentID   string
	KilledAt  time.Time
	Reason    string
	KilledBy  string
}

// Registry is the kill-registry store contract.
type Registry interface {
	// Kill is an idempotent upsert: killing an already-killed agent
	// overwrites Reason/KilledBy/KilledAt with the latest call's values
	// but does not return an error.
	Kill(ctx context.Context, agentID, reason, killedBy string) error

	// IsKilled reports whether agentID currently has a kill entry.
	IsKilled(ctx context.Context, agentID string) (bool, error)

	// Status returns the kill entry for agentID, or ErrNotKilled if none
	// exists.
	Status(ctx context.Context, agentID string) (*Entry, error)

	// Resurrect deletes the kill entry for agentID. It is not an error
	// to resurrect an agent with no kill entry.
	Resurrect(ctx context.Context, agentID string) error
}

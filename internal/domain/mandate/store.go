package mandate

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("mandate not found")

// Store persists issued mandates. There is deliberately no Update:
// mandates never mutate after Create (spec §3).
type Store interface {
	// Create persists a brand-new mandate.
	Create(ctx context.Context, m *Mandate) error

	// Get returns the mandate iff now <= ExpiresAt; an expired mandate
	// returns ErrNotFound exactly as if it never existed (spec §4.4).
	Get(ctx context.Context, mandateID string, now time.Time) (*Mandate, error)

	// FindByAgentAndContext returns the most recent non-expired mandate
	// for agentID whose stored context is key-set and value equal to
	// ctx, or ErrNotFound. Used as a read-through cache; causes no side
	// effects.
	FindByAgentAndContext(ctx context.Context, agentID string, context map[string]string, now time.Time) (*Mandate, error)
}

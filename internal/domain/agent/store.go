package agent

import (
	"context"
	"errors"
)

// Sentinel errors, mirrored by internal/apierr at the transport edge.
var (
	ErrNotFound      = errors.New("agent not found")
	ErrKeyNotFound   = errors.New("api key not found")
	ErrAlreadyExists = errors.New("agent already exists")
)

// Store is the persistence contract for agents. Implementations:
// in-memory (dev/tests), sqlite (prod). Defined in the domain package
// per the teacher's convention, to avoid an import cycle between the
// domain and its adapters.
type Store interface {
	// Create inserts a new agent. Returns ErrAlreadyExists if AgentID
	// is already taken.
	Create(ctx context.Context, a *Agent) error

	// Get retrieves an agent by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, agentID string) (*Agent, error)

	// GetByAPIKeyHash retrieves an agent by the SHA-256 hash of its raw
	// API key. Returns ErrKeyNotFound if no agent has this hash.
	GetByAPIKeyHash(ctx context.Context, keyHash string) (*Agent, error)

	// List returns every agent, active and inactive.
	List(ctx context.Context) ([]*Agent, error)

	// Update persists changes to DisplayName, Status, Metadata.
	// AgentID, APIKeyHash, Environment, and CreatedAt are immutable
	// after creation. Returns ErrNotFound if the agent does not exist.
	Update(ctx context.Context, a *Agent) error

	// SetStatus flips an agent's status. Returns ErrNotFound if absent.
	SetStatus(ctx context.Context, agentID string, status Status) error
}

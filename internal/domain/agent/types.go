// Package agent contains the domain types and store contract for
// registered agents — the principals that request and consume
// mandates. Grounded on the teacher's auth.Identity/APIKey shape,
// adapted to the agent data model spec §3 defines (stable agentId,
// hashed API key, environment tag, active/inactive status, metadata).
package agent

import "time"

// Environment is the deployment environment an agent is registered
// for. It is also reused, per SPEC_FULL.md §2.2, as the config
// package's deployment-environment vocabulary.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// IsValid reports whether e is one of the known environments.
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// Status is the agent's lifecycle state. Soft-delete flips this to
// Inactive rather than removing the row; killing an agent also flips
// this to Inactive as a side effect (see the kill package), but the
// two concepts are tracked independently — resurrecting an agent does
// not resurrect anything the kill registry has already recorded.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Agent is the registered principal that requests mandates. APIKeyHash
// is the SHA-256 hex digest of the raw key handed to the caller exactly
// once at registration; the raw value is never stored.
type Agent struct {
	AgentID      string
	APIKeyHash   string
	DisplayName  string
	Principal    string
	Environment  Environment
	Status       Status
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the agent may currently request or consume
// a mandate.
func (a *Agent) IsActive() bool {
	return a.Status == StatusActive
}

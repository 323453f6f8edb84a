package policy

import (
	"context"
	"errors"
)

// Sentinel errors shared by every PolicyStore/RuleStore implementation.
var (
	ErrPolicyNotFound = errors.New("policy not found")
	ErrRuleNotFound   = errors.New("rule not found")
	// ErrVersionConflict is returned when a transactional update loses
	// a race for the latest-version row lock (I1).
	ErrVersionConflict = errors.New("version conflict")
)

// PolicyStore persists versioned, immutable policies (C4). Create
// inserts version 1; Update inserts version N+1 inside a transaction
// that row-locks the current latest version first (I1) and then
// deactivates it, leaving old versions readable for audit (I2).
type PolicyStore interface {
	// Create inserts a brand-new policy at version 1, active.
	Create(ctx context.Context, policyID string, authority Authority, name string) (*Policy, error)

	// Update inserts a new version (prev+1) of an existing policy,
	// deactivating the previous latest version transactionally.
	// Returns ErrPolicyNotFound if policyID has no existing version.
	Update(ctx context.Context, policyID string, authority Authority, name string) (*Policy, error)

	// GetLatestActive returns the latest version of policyID iff it is
	// active. Returns ErrPolicyNotFound otherwise.
	GetLatestActive(ctx context.Context, policyID string) (*Policy, error)

	// GetVersion returns a specific (policyID, version) pair regardless
	// of its active flag — old versions remain byte-stable and readable
	// forever (P7, P8).
	GetVersion(ctx context.Context, policyID string, version int) (*Policy, error)

	// List returns the latest version of every policy. If activeOnly is
	// true, inactive policies (those fully deleted) are omitted.
	List(ctx context.Context, activeOnly bool) ([]*Policy, error)

	// Delete deactivates a policy's latest version (soft delete) or, if
	// version > 0, deactivates exactly that version.
	Delete(ctx context.Context, policyID string, version int) error
}

// RuleStore persists versioned, immutable rules (C3).
type RuleStore interface {
	// Create inserts a brand-new rule at version 1, active.
	Create(ctx context.Context, ruleID string, r Rule) (*Rule, error)

	// Update inserts a new version of an existing rule, deactivating
	// the previous latest version transactionally. Returns
	// ErrRuleNotFound if ruleID has no existing version.
	Update(ctx context.Context, ruleID string, r Rule) (*Rule, error)

	// GetLatestActive returns the latest active version of ruleID.
	GetLatestActive(ctx context.Context, ruleID string) (*Rule, error)

	// ListActive returns the latest active version of every rule, in
	// the stable tiebreak order spec §4.2 step 6 requires: version
	// DESC, id ASC is the per-rule selection; the returned slice itself
	// is ordered by insertion order of the active-rule table.
	ListActive(ctx context.Context) ([]*Rule, error)

	// List returns the latest version of every rule regardless of
	// active flag.
	List(ctx context.Context) ([]*Rule, error)

	// Delete deactivates a rule's latest active version.
	Delete(ctx context.Context, ruleID string) error
}

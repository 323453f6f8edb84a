// Package mandate contains the Mandate data model and store contract
// (C7). A Mandate is a historical fact: once persisted it never
// mutates (spec §3 invariant), so the store interface below exposes no
// update operation at all, only Create/Get/Find.
package mandate

import (
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

// TTL is the fixed mandate lifetime spec §3 fixes at five minutes.
const TTL = 5 * time.Minute

// RuleRef and PolicyRef freeze the exact version of a rule/policy that
// contributed to a mandate's composed authority, so later edits to
// those rules/policies never alter the meaning of a past mandate (I2).
type RuleRef struct {
	RuleID  string
	Version int
}

type PolicyRef struct {
	PolicyID string
	Version  int
}

// Mandate is the time-bounded, immutable authority grant spec §3
// describes. Context is the sanitised input context exactly as
// captured at issuance.
type Mandate struct {
	MandateID       string
	AgentID         string
	Context         map[string]string
	Authority       policy.Authority
	MatchedRules    []RuleRef
	AppliedPolicies []PolicyRef
	IssuedAt        time.Time
	ExpiresAt       time.Time
	SchemaVersion   int
}

// IsExpired reports whether the mandate is past its expiry at the
// given instant. Queries past ExpiresAt are treated as not-found by
// the store, not merely "expired" — see store.go.
func (m *Mandate) IsExpired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// contextEqual reports whether ctx is key-set equal and value equal to
// m.Context, used by FindByAgentAndContext's read-through cache match.
func (m *Mandate) contextEqual(ctx map[string]string) bool {
	if len(ctx) != len(m.Context) {
		return false
	}
	for k, v := range ctx {
		if mv, ok := m.Context[k]; !ok || mv != v {
			return false
		}
	}
	return true
}

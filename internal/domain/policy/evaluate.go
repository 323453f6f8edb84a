package policy

import (
	"context"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
)

// Match pairs a matched rule with the policy it targets, both pinned
// to the exact version active at evaluation time (I2).
type Match struct {
	Rule   *Rule
	Policy *Policy
}

// Evaluator implements C5: given an agent and a sanitised context,
// produce the deterministically-ordered set of matched rules and their
// target policies.
type Evaluator struct {
	agents  agent.Store
	rules   RuleStore
	policies PolicyStore
	cel     CELEvaluator
}

// NewEvaluator constructs an Evaluator. cel may be nil; "cel" operator
// conditions then never match.
func NewEvaluator(agents agent.Store, rules RuleStore, policies PolicyStore, cel CELEvaluator) *Evaluator {
	return &Evaluator{agents: agents, rules: rules, policies: policies, cel: cel}
}

// agentActive reports whether agentID resolves to a currently-active
// agent. Used both for the primary agent check and for fail-closed
// scope resolution of a rule's AgentIDs list.
func (e *Evaluator) agentActive(ctx context.Context, agentID string) bool {
	a, err := e.agents.Get(ctx, agentID)
	if err != nil {
		return false
	}
	return a.IsActive()
}

// inScope reports whether a rule applies to agentID per spec §4.2 step
// 3: empty/nil AgentIDs is universal; otherwise every listed agent
// must resolve active, and agentID must be among them, or the rule is
// skipped entirely (fail-closed).
func (e *Evaluator) inScope(ctx context.Context, r *Rule, agentID string) bool {
	if len(r.AgentIDs) == 0 {
		return true
	}
	found := false
	for _, id := range r.AgentIDs {
		if !e.agentActive(ctx, id) {
			return false
		}
		if id == agentID {
			found = true
		}
	}
	return found
}

// Evaluate runs the full C5 algorithm: load the agent, load active
// rules, filter by scope then by condition match, resolve each
// matched rule's target policy (skipping silently if absent/inactive),
// and return the surviving matches in the rule store's stable order.
func (e *Evaluator) Evaluate(ctx context.Context, agentID string, sanitizedContext map[string]string) ([]Match, error) {
	a, err := e.agents.Get(ctx, agentID)
	if err != nil || !a.IsActive() {
		return nil, apierr.New(apierr.KindAgentInactive, "agent is not active")
	}

	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStoreUnavailable, "failed to load rules", err)
	}

	var matches []Match
	for _, r := range rules {
		if !e.inScope(ctx, r, agentID) {
			continue
		}
		if !matchConditions(r.Conditions, r.MatchMode, sanitizedContext, e.cel) {
			continue
		}
		p, err := e.policies.GetLatestActive(ctx, r.PolicyID)
		if err != nil {
			// Absent or inactive target policy: skip silently (§4.2 step 5).
			continue
		}
		matches = append(matches, Match{Rule: r, Policy: p})
	}
	return matches, nil
}

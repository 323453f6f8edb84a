package enforce

import (
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
	"github.com/mandate-authority/mandate-authority/internal/domain/state"
)

// Decide is the C11 policy engine: given an action, the mandate it
// claims authority from, and a state snapshot, return ALLOW or BLOCK.
// Pure function — no I/O, no mutation of any argument, safe to call
// from the executor's authorize step and from tests without a store.
// Checks run in the exact order spec §4.5 fixes, first hit wins.
func Decide(action Action, m *mandate.Mandate, snapshot state.State) Decision {
	now := action.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// 1. Replay.
	if snapshot.SeenActionIDs[action.ID] {
		return block(CodeReplay, "action id already seen", true)
	}

	// 2. Kill.
	if snapshot.Killed {
		return block(CodeKilled, "agent is killed", true)
	}

	// 3. Expiry.
	if !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt) {
		return block(CodeExpired, "mandate has expired", true)
	}

	auth := m.Authority

	// 4. Tool scope (tool actions only).
	if action.ToolName != "" {
		if len(auth.DeniedTools) > 0 {
			denied, err := policy.GlobMatchAny(auth.DeniedTools, action.ToolName)
			if err != nil {
				return block(CodeToolDenied, "deniedTools pattern invalid: "+err.Error(), true)
			}
			if denied {
				return block(CodeToolDenied, "tool matches deniedTools", true)
			}
		}
		if auth.AllowedTools != nil {
			allowed, err := policy.GlobMatchAny(auth.AllowedTools, action.ToolName)
			if err != nil {
				return block(CodeToolNotAllowed, "allowedTools pattern invalid: "+err.Error(), true)
			}
			if !allowed {
				return block(CodeToolNotAllowed, "tool not in allowedTools", true)
			}
		}
	}

	// 5. Per-tool policy.
	var toolPolicy *policy.ToolAuthority
	if action.ToolName != "" {
		if tp, ok := auth.ToolPolicies[action.ToolName]; ok {
			toolPolicy = &tp
			if !tp.Allowed {
				return block(CodeToolDenied, "tool policy denies this tool", true)
			}
			if tp.Cost > 0 && action.EstimatedCost > tp.Cost {
				return block(CodePerCallLimit, "per-tool maxCostPerCall exceeded", true)
			}
		}
	}

	// 6. Global per-call budget.
	if auth.MaxCostPerCall != nil && action.EstimatedCost > *auth.MaxCostPerCall {
		return block(CodePerCallLimit, "maxCostPerCall exceeded", true)
	}

	// 7. Total budget.
	if auth.MaxCostTotal != nil && snapshot.CumulativeCost+action.EstimatedCost > *auth.MaxCostTotal {
		return block(CodeTotalBudget, "maxCostTotal exceeded", true)
	}

	// 8. Rate limit (agent-level). Window transition here is a
	// read-only projection for the decision; the authoritative reset
	// happens inside state.Decide at commit time.
	if auth.RateLimit != nil {
		w := snapshot.Windows[""]
		if !projectWindowAdmits(w, auth.RateLimit, now) {
			return block(CodeRateLimit, "agent rate limit exceeded", false)
		}
	}

	// 9. Rate limit (per-tool).
	if toolPolicy != nil && toolPolicy.RateLimit != nil && action.ToolName != "" {
		w := snapshot.Windows[action.ToolName]
		if !projectWindowAdmits(w, toolPolicy.RateLimit, now) {
			return block(CodeRateLimit, "per-tool rate limit exceeded", false)
		}
	}

	// 10. Allow.
	remaining := 0.0
	if auth.MaxCostTotal != nil {
		remaining = *auth.MaxCostTotal - snapshot.CumulativeCost - action.EstimatedCost
	}
	return allow(remaining)
}

// projectWindowAdmits mirrors state's windowAdmits projection without
// mutating anything: a window that has crossed its reset boundary is
// treated as fresh for the purpose of this read-only check.
func projectWindowAdmits(w state.Window, limit *policy.RateLimit, now time.Time) bool {
	if limit == nil {
		return true
	}
	if w.Start.IsZero() || now.Sub(w.Start).Milliseconds() >= limit.WindowMs {
		return true
	}
	return w.Count < limit.MaxCalls
}

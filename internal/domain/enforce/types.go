// Package enforce implements the runtime enforcement core's pure
// policy engine (C11) and two-phase executor (C12): authorize against
// a mandate and a state snapshot, run the caller's action, settle its
// cost under a charging policy, and commit the result through the
// state manager (C10). Grounded on the teacher's request-pipeline
// shape (validate → forward → account) generalised to spec §4.5/§4.6's
// exact ordered check list and settlement algebra.
package enforce

import (
	"time"

	"github.com/mandate-authority/mandate-authority/internal/domain/state"
)

// Action is one proposed unit of work against a mandate: either a tool
// call (ToolName set) or a cognition call such as an LLM invocation
// (ToolName empty).
type Action struct {
	ID            string
	AgentID       string
	ToolName      string
	EstimatedCost float64
	CostClass     state.CostClass
	Now           time.Time
}

// Code enumerates the machine-readable reason a Decision blocks,
// shared with state.RejectReason's vocabulary so an authorize-time
// BLOCK and a commit-time Reject always speak the same language.
type Code string

const (
	CodeReplay         Code = "REPLAY"
	CodeKilled         Code = "KILLED"
	CodeExpired        Code = "EXPIRED"
	CodeToolDenied     Code = "TOOL_DENIED"
	CodeToolNotAllowed Code = "TOOL_NOT_ALLOWED"
	CodePerCallLimit   Code = "PER_CALL_LIMIT"
	CodeTotalBudget    Code = "TOTAL_BUDGET"
	CodeRateLimit      Code = "RATE_LIMIT"
)

// Decision is the policy engine's pure output. Exactly one of Allow or
// Block is meaningful, discriminated by Allowed.
type Decision struct {
	Allowed       bool
	RemainingCost *float64

	Reason string
	Code   Code
	// Hard distinguishes a structural denial (replay, kill, expiry,
	// scope, budget) from a soft one (rate limit): spec §4.5 step 8/9
	// mark rate limiting "soft" because the same action may be
	// admitted a moment later once its window rolls, whereas a hard
	// block never becomes true for this action.
	Hard bool
}

func allow(remaining float64) Decision {
	r := remaining
	return Decision{Allowed: true, RemainingCost: &r}
}

func block(code Code, reason string, hard bool) Decision {
	return Decision{Allowed: false, Code: code, Reason: reason, Hard: hard}
}

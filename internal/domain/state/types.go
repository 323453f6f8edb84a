// Package state implements the per-(agent,mandate) runtime state
// accumulator (C10): cost, call counts, rate-limit windows, seen
// action IDs, and the killed bit. Grounded on the
// teacher's state-store concept (a single mutable per-key record
// guarded for concurrent access) generalised to spec §4.7's memory
// and distributed backend contract.
package state

import "time"

// CostClass distinguishes cognition (LLM) cost from execution (tool)
// cost in the cumulative accumulators.
type CostClass string

const (
	CostClassCognition CostClass = "cognition"
	CostClassExecution CostClass = "execution"
)

// Window is a fixed-window rate-limit counter: Start anchors the
// window, Count is the number of calls admitted inside it. A window
// resets when now - Start >= width, which is a commit-time mutation,
// never merely a read-time projection (spec §4.5 step 8).
type Window struct {
	Start time.Time
	Count int
}

// State is the immutable snapshot Get returns. Callers must not mutate
// it; all mutation goes through CheckAndCommit.
type State struct {
	AgentID        string
	MandateID      string
	CumulativeCost float64
	CognitionCost  float64
	ExecutionCost  float64
	CallCount      int
	ToolCallCounts map[string]int
	// Windows is keyed by rate-limit scope: "" for the agent-level
	// window, toolName for a per-tool window.
	Windows       map[string]Window
	SeenActionIDs map[string]bool
	Killed        bool
}

// Clone returns a deep copy so a caller holding a State snapshot can
// never observe or cause a concurrent mutation.
func (s State) Clone() State {
	out := s
	if s.ToolCallCounts != nil {
		out.ToolCallCounts = make(map[string]int, len(s.ToolCallCounts))
		for k, v := range s.ToolCallCounts {
			out.ToolCallCounts[k] = v
		}
	}
	if s.Windows != nil {
		out.Windows = make(map[string]Window, len(s.Windows))
		for k, v := range s.Windows {
			out.Windows[k] = v
		}
	}
	if s.SeenActionIDs != nil {
		out.SeenActionIDs = make(map[string]bool, len(s.SeenActionIDs))
		for k, v := range s.SeenActionIDs {
			out.SeenActionIDs[k] = v
		}
	}
	return out
}

func newState(agentID, mandateID string) State {
	return State{
		AgentID:        agentID,
		MandateID:      mandateID,
		ToolCallCounts: make(map[string]int),
		Windows:        make(map[string]Window),
		SeenActionIDs:  make(map[string]bool),
	}
}

// RateLimit bounds calls within a window. Mirrors policy.RateLimit
// without importing the policy package, so state stays a leaf
// dependency the distributed backend's wire encoding doesn't need to
// know about policy composition.
type RateLimit struct {
	MaxCalls int
	WindowMs int64
}

// Change is the atomic mutation proposal submitted to CheckAndCommit.
// Limits carries the exact budget/rate values the policy engine used
// to authorize this action, re-validated atomically at commit time to
// close the authorize/commit race window spec §4.6 step 5 describes.
type Change struct {
	ActionID      string
	EstimatedCost float64
	ActualCost    float64
	CostClass     CostClass
	ToolName      string
	Now           time.Time

	MaxCostTotal    *float64
	MaxCostPerCall  *float64
	AgentRateLimit  *RateLimit
	ToolRateLimit   *RateLimit
}

// RejectReason enumerates why CheckAndCommit refused a Change. The
// same vocabulary the policy engine (C11) uses for BLOCK reasons.
type RejectReason string

const (
	RejectReplay          RejectReason = "REPLAY"
	RejectKilled          RejectReason = "KILLED"
	RejectTotalBudget     RejectReason = "TOTAL_BUDGET"
	RejectPerCallLimit    RejectReason = "PER_CALL_LIMIT"
	RejectRateLimit       RejectReason = "RATE_LIMIT"
	RejectStoreUnavailable RejectReason = "STORE_UNAVAILABLE"
)

// Result is the outcome of CheckAndCommit.
type Result struct {
	Accepted bool
	Reason   RejectReason
	State    State
}

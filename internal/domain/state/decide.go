package state

import "time"

// settledCost returns the cost change contributes to the cumulative
// accumulator, regardless of which cost class it belongs to.
func (c Change) settledCost() float64 {
	if c.ActualCost != 0 {
		return c.ActualCost
	}
	return c.EstimatedCost
}

// windowAdmits reports whether limit permits one more call against
// window w at instant now, and returns the window CheckAndCommit
// should persist (either w unchanged, or a fresh window if now has
// crossed the reset boundary).
func windowAdmits(w Window, limit *RateLimit, now time.Time) (admitted bool, next Window) {
	if limit == nil {
		return true, w
	}
	elapsedMs := now.Sub(w.Start).Milliseconds()
	if w.Start.IsZero() || elapsedMs >= limit.WindowMs {
		return true, Window{Start: now, Count: 1}
	}
	if w.Count >= limit.MaxCalls {
		return false, w
	}
	return true, Window{Start: w.Start, Count: w.Count + 1}
}

// Decide runs the same predicate set the policy engine (C11) applies,
// re-checked atomically against the authoritative current state. It
// never mutates cur; on acceptance it returns the State the caller
// must persist in place of cur.
func Decide(cur State, change Change) Result {
	if cur.SeenActionIDs[change.ActionID] {
		return Result{Accepted: false, Reason: RejectReplay, State: cur}
	}
	if cur.Killed {
		return Result{Accepted: false, Reason: RejectKilled, State: cur}
	}

	settled := change.settledCost()

	if change.MaxCostPerCall != nil && settled > *change.MaxCostPerCall {
		return Result{Accepted: false, Reason: RejectPerCallLimit, State: cur}
	}
	if change.MaxCostTotal != nil && cur.CumulativeCost+settled > *change.MaxCostTotal {
		return Result{Accepted: false, Reason: RejectTotalBudget, State: cur}
	}

	agentWindow := cur.Windows[""]
	agentAdmit, nextAgentWindow := windowAdmits(agentWindow, change.AgentRateLimit, change.Now)
	if !agentAdmit {
		return Result{Accepted: false, Reason: RejectRateLimit, State: cur}
	}

	var nextToolWindow Window
	toolAdmit := true
	if change.ToolName != "" {
		toolWindow := cur.Windows[change.ToolName]
		toolAdmit, nextToolWindow = windowAdmits(toolWindow, change.ToolRateLimit, change.Now)
		if !toolAdmit {
			return Result{Accepted: false, Reason: RejectRateLimit, State: cur}
		}
	}

	next := cur.Clone()
	next.SeenActionIDs[change.ActionID] = true
	next.CumulativeCost += settled
	switch change.CostClass {
	case CostClassCognition:
		next.CognitionCost += settled
	case CostClassExecution:
		next.ExecutionCost += settled
	}
	next.CallCount++
	if change.ToolName != "" {
		next.ToolCallCounts[change.ToolName]++
		next.Windows[change.ToolName] = nextToolWindow
	}
	next.Windows[""] = nextAgentWindow

	return Result{Accepted: true, State: next}
}

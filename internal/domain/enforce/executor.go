package enforce

import (
	"context"
	"fmt"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/audit"
	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
	"github.com/mandate-authority/mandate-authority/internal/domain/state"
)

// BlockedError is raised when the authorize step's Decision is a
// BLOCK. The caller never reaches Execute's side effect.
type BlockedError struct {
	Reason string
	Code   Code
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("mandate blocked action: %s (%s)", e.Reason, e.Code)
}

// RunFunc performs the actual side effect (a tool call or an LLM
// call). remainingCost is the provider-specific budget bound derived
// from the authorize step's Decision (spec §4.6 step 2), e.g. to cap
// maxTokens on an LLM request. success is the caller's own verdict on
// whether the attempt succeeded, independent of err: a tool call that
// returns a result but represents a logical failure (err == nil,
// success == false) still settles under the charging policy's failure
// branch.
type RunFunc func(ctx context.Context, remainingCost float64) (result any, actualCost *float64, success bool, err error)

// VerifyFunc is the optional per-tool result verification step (spec
// §4.6 step 3). A false ok is treated as execution failure regardless
// of what RunFunc reported.
type VerifyFunc func(ctx context.Context, action Action, result any) (ok bool, reason string)

// StatsRecorder receives a lock-free tally of executor decisions.
// Satisfied by *service.StatsService without either package importing
// the other; the domain layer only depends on this narrow interface.
type StatsRecorder interface {
	RecordAllow()
	RecordBlock()
	RecordBlockReason(code string)
}

// Executor is the C12 two-phase executor: authorize → execute →
// verify → settle → commit → audit, wired to one state.Manager and one
// audit.Store. Grounded on the teacher's request-forwarding pipeline,
// generalised from "forward then log" to the full authorize/commit
// cycle spec §4.6 specifies.
type Executor struct {
	states state.Manager
	audit  audit.Store
	now    func() time.Time
	stats  StatsRecorder
}

// ExecutorOption configures optional Executor behavior.
type ExecutorOption func(*Executor)

// WithStatsRecorder has Execute report each decision's outcome to r,
// alongside the audit trail it always writes.
func WithStatsRecorder(r StatsRecorder) ExecutorOption {
	return func(x *Executor) { x.stats = r }
}

// NewExecutor wires an Executor to its state manager and audit sink.
// now defaults to time.Now; tests may override it for determinism.
func NewExecutor(states state.Manager, auditStore audit.Store, now func() time.Time, opts ...ExecutorOption) *Executor {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	x := &Executor{states: states, audit: auditStore, now: now}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *Executor) recordAllow() {
	if x.stats != nil {
		x.stats.RecordAllow()
	}
}

func (x *Executor) recordBlock(code string) {
	if x.stats != nil {
		x.stats.RecordBlock()
		x.stats.RecordBlockReason(code)
	}
}

func actionType(action Action) audit.ActionType {
	if action.ToolName != "" {
		return audit.ActionTypeToolCall
	}
	return audit.ActionTypeLLMCall
}

func toAuditRuleRefs(refs []mandate.RuleRef) []audit.RuleRef {
	out := make([]audit.RuleRef, len(refs))
	for i, r := range refs {
		out[i] = audit.RuleRef{RuleID: r.RuleID, Version: r.Version}
	}
	return out
}

// Execute runs the full two-phase cycle for one action against m.
// On a BLOCK at authorize time, returns *BlockedError and performs no
// side effect. On a commit rejection after the side effect already
// ran, returns an *apierr.Error{Kind: KindInconsistentSettlement} —
// the caller performed a real action the system refuses to account as
// consumed authority, and that refusal itself is the thing callers
// must handle (typically: alert, do not silently retry).
func (x *Executor) Execute(ctx context.Context, action Action, m *mandate.Mandate, charging ChargingPolicy, run RunFunc, verify VerifyFunc) (any, error) {
	if action.Now.IsZero() {
		action.Now = x.now()
	}

	// 1. Authorize, against a snapshot. Pure, no mutation.
	snapshot, err := x.states.Get(ctx, action.AgentID, m.MandateID)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStoreUnavailable, "read state snapshot", err)
	}
	decision := Decide(action, m, snapshot)
	if !decision.Allowed {
		x.appendAudit(ctx, action, m, audit.DecisionBlock, decision.Reason, 0, 0, snapshot.CumulativeCost)
		x.recordBlock(string(decision.Code))
		return nil, &BlockedError{Reason: decision.Reason, Code: decision.Code}
	}

	// 2. Execute. Cancellation propagates into run via ctx; the commit
	// phase still happens afterward with whatever cost settles (spec
	// §5's cancellation rule).
	result, actualCost, success, runErr := run(ctx, *decision.RemainingCost)

	// 3. Verify (optional).
	failureReason := ""
	if runErr == nil && verify != nil {
		ok, reason := verify(ctx, action, result)
		if !ok {
			success = false
			failureReason = reason
		}
	}
	if runErr != nil {
		success = false
		failureReason = runErr.Error()
	}

	// 4. Settle.
	settled := Settle(charging, Settlement{
		EstimatedCost: action.EstimatedCost,
		ActualCost:    actualCost,
		Success:       success,
	})

	// 5. Commit.
	change := state.Change{
		ActionID:      action.ID,
		EstimatedCost: action.EstimatedCost,
		ActualCost:    settled,
		CostClass:     action.CostClass,
		ToolName:      action.ToolName,
		Now:           action.Now,

		MaxCostTotal:   m.Authority.MaxCostTotal,
		MaxCostPerCall: m.Authority.MaxCostPerCall,
	}
	if m.Authority.RateLimit != nil {
		change.AgentRateLimit = &state.RateLimit{MaxCalls: m.Authority.RateLimit.MaxCalls, WindowMs: m.Authority.RateLimit.WindowMs}
	}
	if action.ToolName != "" {
		if tp, ok := m.Authority.ToolPolicies[action.ToolName]; ok && tp.RateLimit != nil {
			change.ToolRateLimit = &state.RateLimit{MaxCalls: tp.RateLimit.MaxCalls, WindowMs: tp.RateLimit.WindowMs}
		}
	}

	commitResult, err := x.states.CheckAndCommit(ctx, action.AgentID, m.MandateID, change)
	if err != nil {
		x.appendAudit(ctx, action, m, audit.DecisionBlock, "commit store error: "+err.Error(), settled, settled, snapshot.CumulativeCost)
		x.recordBlock("COMMIT_ERROR")
		return result, apierr.Wrap(apierr.KindInconsistentSettlement, "commit failed after side effect executed", err)
	}
	if !commitResult.Accepted {
		x.appendAudit(ctx, action, m, audit.DecisionBlock, string(commitResult.Reason), settled, settled, snapshot.CumulativeCost)
		x.recordBlock(string(commitResult.Reason))
		return result, apierr.New(apierr.KindInconsistentSettlement, fmt.Sprintf("commit rejected after side effect executed: %s", commitResult.Reason))
	}

	// 6. Audit: ALLOW.
	x.appendAudit(ctx, action, m, audit.DecisionAllow, describeOutcome(success, failureReason), action.EstimatedCost, settled, commitResult.State.CumulativeCost)
	x.recordAllow()

	if runErr != nil {
		return result, runErr
	}
	if failureReason != "" {
		return result, fmt.Errorf("action failed verification: %s", failureReason)
	}
	return result, nil
}

func describeOutcome(success bool, failureReason string) string {
	if success {
		return "settled"
	}
	if failureReason != "" {
		return "failed: " + failureReason
	}
	return "failed"
}

func (x *Executor) appendAudit(ctx context.Context, action Action, m *mandate.Mandate, decision audit.Decision, reason string, estimatedCost, actualCost, cumulativeCost float64) {
	if x.audit == nil {
		return
	}
	entry := audit.Entry{
		AgentID:        action.AgentID,
		ActionID:       action.ID,
		Timestamp:      action.Now,
		ActionType:     actionType(action),
		ToolName:       action.ToolName,
		Decision:       decision,
		Reason:         reason,
		EstimatedCost:  estimatedCost,
		ActualCost:     actualCost,
		CumulativeCost: cumulativeCost,
		Context:        m.Context,
		MatchedRules:   toAuditRuleRefs(m.MatchedRules),
	}
	_ = x.audit.Append(ctx, entry)
}

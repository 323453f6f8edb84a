// Package audit contains the append-only decision record (C13).
// Grounded on the teacher's audit package: same role (one record per
// gated decision, write-only store interface, filtered query with a
// result cap), rewritten from the teacher's tool-call-proxy record
// shape to spec §3's mandate/action-level record.
package audit

import "time"

// Decision is the outcome recorded for a gated action.
type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionBlock Decision = "BLOCK"
)

// ActionType distinguishes the kind of event an audit row records.
type ActionType string

const (
	ActionTypeMandateIssued ActionType = "mandate_issued"
	ActionTypeToolCall      ActionType = "tool_call"
	ActionTypeLLMCall       ActionType = "llm_call"
)

// RuleRef pins an audit row to the exact rule version that produced
// (or would have produced) the decision, matching the mandate's own
// frozen matchedRules array.
type RuleRef struct {
	RuleID  string
	Version int
}

// Entry is a single append-only audit record (spec §3 "Audit log
// entry"). Entries are never updated or deleted after Append.
type Entry struct {
	AgentID        string
	ActionID       string
	Timestamp      time.Time
	ActionType     ActionType
	ToolName       string
	Decision       Decision
	Reason         string
	EstimatedCost  float64
	ActualCost     float64
	CumulativeCost float64
	Context        map[string]string
	MatchedRules   []RuleRef
	Metadata       map[string]string
}

// Package policy contains the versioned policy/rule data model, the
// pure policy composer (C6), and the rule evaluator (C5). Grounded on
// the teacher's policy package (same name, same role — feed a policy
// engine with matchable rules) but rewritten from an RBAC
// allow/deny/approval rule list into spec's versioned authority
// template + condition-matched rule model.
package policy

import "time"

// RateLimit bounds the call rate for a scope (agent-wide or per-tool).
type RateLimit struct {
	MaxCalls int
	WindowMs int64
}

// ToolAuthority is a per-tool sub-authority nested inside an Authority.
type ToolAuthority struct {
	Allowed   bool
	Cost      float64
	RateLimit *RateLimit
}

// ExecutionLimits bounds non-cost execution parameters (e.g. wall-clock
// or token ceilings passed through to a provider-specific runFn bound).
type ExecutionLimits struct {
	MaxTokens         int64
	MaxDurationMs     int64
	MaxConcurrentCalls int
}

// ModelConfig restricts which models an agent may invoke under this
// authority.
type ModelConfig struct {
	AllowedModels []string
}

// Authority is the set of declarative limits granted by a policy (or
// the result of composing several). Numeric fields are pointers so
// "undefined" (no policy in the composed set mentions this field) is
// distinguishable from "defined as zero".
type Authority struct {
	MaxCostTotal     *float64
	MaxCostPerCall   *float64
	MaxCognitionCost *float64
	MaxExecutionCost *float64
	RateLimit        *RateLimit

	// AllowedTools is nil when undefined (no whitelist) and non-nil-empty
	// when explicitly deny-all-by-whitelist. This distinction is load
	// bearing — see Compose.
	AllowedTools []string
	DeniedTools  []string

	ToolPolicies map[string]ToolAuthority

	ExecutionLimits *ExecutionLimits
	ModelConfig     *ModelConfig
}

// Clone returns a deep copy of a, so composition never aliases a
// stored policy's slices/maps into the effective authority it hands to
// callers.
func (a Authority) Clone() Authority {
	out := a
	if a.MaxCostTotal != nil {
		v := *a.MaxCostTotal
		out.MaxCostTotal = &v
	}
	if a.MaxCostPerCall != nil {
		v := *a.MaxCostPerCall
		out.MaxCostPerCall = &v
	}
	if a.MaxCognitionCost != nil {
		v := *a.MaxCognitionCost
		out.MaxCognitionCost = &v
	}
	if a.MaxExecutionCost != nil {
		v := *a.MaxExecutionCost
		out.MaxExecutionCost = &v
	}
	if a.RateLimit != nil {
		v := *a.RateLimit
		out.RateLimit = &v
	}
	if a.AllowedTools != nil {
		out.AllowedTools = append([]string(nil), a.AllowedTools...)
	}
	if a.DeniedTools != nil {
		out.DeniedTools = append([]string(nil), a.DeniedTools...)
	}
	if a.ToolPolicies != nil {
		out.ToolPolicies = make(map[string]ToolAuthority, len(a.ToolPolicies))
		for k, v := range a.ToolPolicies {
			if v.RateLimit != nil {
				rl := *v.RateLimit
				v.RateLimit = &rl
			}
			out.ToolPolicies[k] = v
		}
	}
	if a.ExecutionLimits != nil {
		v := *a.ExecutionLimits
		out.ExecutionLimits = &v
	}
	if a.ModelConfig != nil {
		out.ModelConfig = &ModelConfig{AllowedModels: append([]string(nil), a.ModelConfig.AllowedModels...)}
	}
	return out
}

// Policy is a versioned, immutable authority template. (PolicyID,
// Version) is globally unique; Active marks the latest version as the
// one rule evaluation and CRUD GETs resolve to by default.
type Policy struct {
	PolicyID  string
	Version   int
	Name      string
	Authority Authority
	Active    bool
	CreatedAt time.Time
}

// MatchMode is the boolean combinator applied across a rule's
// conditions.
type MatchMode string

const (
	MatchAll MatchMode = "AND"
	MatchAny MatchMode = "OR"
)

// Operator is one of the fixed condition operators spec §4.2 defines.
type Operator string

const (
	OpEquals      Operator = "=="
	OpNotEquals   Operator = "!="
	OpIn          Operator = "in"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = ">"
	OpLessThan    Operator = "<"
	OpGreaterEq   Operator = ">="
	OpLessEq      Operator = "<="
	// OpCEL is the optional escape hatch: Value is a CEL expression
	// evaluated against the context map. Not part of spec's fixed
	// operator set; see DESIGN.md for why it is wired in anyway.
	OpCEL Operator = "cel"
)

// Condition is a single (field, operator, value) test against the
// issuance context. For OpIn, Value is a comma-separated list; for
// OpCEL, Field is ignored and Value is the expression source.
type Condition struct {
	Field    string
	Operator Operator
	Value    string
}

// Rule is a versioned, immutable condition set that points at a target
// policy. (RuleID, Version) is globally unique.
type Rule struct {
	RuleID     string
	Version    int
	Conditions []Condition
	MatchMode  MatchMode
	// AgentIDs scopes the rule to specific agents; nil/empty means
	// universal.
	AgentIDs []string
	PolicyID string
	Active   bool
	CreatedAt time.Time
}

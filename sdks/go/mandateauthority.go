// Package mandateauthority provides a Go SDK for the mandate
// authority service's external HTTP interface.
//
// A mandate authority server issues short-lived, policy-composed
// authority grants ("mandates") to registered agents and lets any
// caller check or flip an agent's kill switch. This SDK lets a Go
// agent runtime fetch a mandate, check whether its agent has been
// killed, and kill or resurrect its own agent identity — all over
// plain HTTP/JSON, using only the Go standard library (net/http) with
// zero external dependencies.
//
// Quick start:
//
//	// Set MANDATE_AUTHORITY_SERVER_ADDR and MANDATE_AUTHORITY_API_KEY
//	// env vars, then:
//	client := mandateauthority.NewClient()
//
//	mandate, err := client.IssueMandate(ctx, map[string]string{
//	    "task": "summarize-report",
//	})
//	if err != nil {
//	    var killed *AgentKilledError
//	    if errors.As(err, &killed) {
//	        log.Fatalf("agent killed: %s", killed.Reason)
//	    }
//	}
package mandateauthority

// Authority is the composed set of limits a mandate grants, mirroring
// the server's internal/domain/policy.Authority wire shape.
type Authority struct {
	MaxCostTotal     *float64            `json:"maxCostTotal,omitempty"`
	MaxCostPerCall   *float64            `json:"maxCostPerCall,omitempty"`
	MaxCognitionCost *float64            `json:"maxCognitionCost,omitempty"`
	MaxExecutionCost *float64            `json:"maxExecutionCost,omitempty"`
	AllowedTools     []string            `json:"allowedTools,omitempty"`
	DeniedTools      []string            `json:"deniedTools,omitempty"`
	RateLimit        *RateLimit          `json:"rateLimit,omitempty"`
	ToolPolicies     map[string]ToolRule `json:"toolPolicies,omitempty"`
}

// RateLimit caps calls to maxCalls per windowMs.
type RateLimit struct {
	MaxCalls int   `json:"maxCalls"`
	WindowMs int64 `json:"windowMs"`
}

// ToolRule is a per-tool override layered on top of Authority's
// blanket allow/deny and rate limit.
type ToolRule struct {
	MaxCostPerCall *float64   `json:"maxCostPerCall,omitempty"`
	RateLimit      *RateLimit `json:"rateLimit,omitempty"`
}

// Mandate is the issued authority grant returned by IssueMandate.
type Mandate struct {
	MandateID          string    `json:"mandateId"`
	EffectiveAuthority Authority `json:"effectiveAuthority"`
	ExpiresAt          string    `json:"expiresAt"`
}

// KillStatus is the current kill-switch state for an agent.
type KillStatus struct {
	Killed   bool    `json:"killed"`
	KilledAt *string `json:"killedAt,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	KilledBy string  `json:"killedBy,omitempty"`
}

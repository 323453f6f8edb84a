package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mandate-authority/mandate-authority/internal/adapter/outbound/memory"
	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

func newIssuanceFixture(t *testing.T) (*IssuanceService, *memory.AgentStore, *memory.PolicyStore, *memory.RuleStore, *memory.KillRegistry) {
	t.Helper()
	agents := memory.NewAgentStore()
	policies := memory.NewPolicyStore()
	rules := memory.NewRuleStore()
	kills := memory.NewKillRegistry()
	evaluator := policy.NewEvaluator(agents, rules, policies, nil)
	mandates := memory.NewMandateStore()
	svc := NewIssuanceService(agents, evaluator, mandates, kills, nil, nil)
	return svc, agents, policies, rules, kills
}

func mustRegisterAgent(t *testing.T, agents *memory.AgentStore, agentID string) {
	t.Helper()
	if err := agents.Create(context.Background(), &agent.Agent{
		AgentID:     agentID,
		APIKeyHash:  "hash-" + agentID,
		DisplayName: agentID,
		Environment: agent.EnvDevelopment,
		Status:      agent.StatusActive,
	}); err != nil {
		t.Fatalf("register agent: %v", err)
	}
}

func TestIssuanceService_Issue_ComposesMatchedPolicy(t *testing.T) {
	svc, agents, policies, rules, _ := newIssuanceFixture(t)
	mustRegisterAgent(t, agents, "agent-1")

	total := 50.0
	_, err := policies.Create(context.Background(), "policy-1", policy.Authority{MaxCostTotal: &total}, "base policy")
	if err != nil {
		t.Fatalf("create policy: %v", err)
	}
	_, err = rules.Create(context.Background(), "rule-1", policy.Rule{
		Conditions: []policy.Condition{{Field: "repo", Operator: policy.OpEquals, Value: "payments"}},
		MatchMode:  policy.MatchAll,
		PolicyID:   "policy-1",
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	m, err := svc.Issue(context.Background(), "agent-1", map[string]string{"repo": "payments"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if m.MandateID == "" {
		t.Fatalf("expected a minted mandate id")
	}
	if m.Authority.MaxCostTotal == nil || *m.Authority.MaxCostTotal != total {
		t.Fatalf("expected composed authority to carry the matched policy's budget, got %+v", m.Authority)
	}
	if len(m.MatchedRules) != 1 || m.MatchedRules[0].RuleID != "rule-1" {
		t.Fatalf("expected matched rule recorded on the mandate, got %+v", m.MatchedRules)
	}
}

func TestIssuanceService_Issue_NoMatchingRule_EmptyAuthority(t *testing.T) {
	svc, agents, _, _, _ := newIssuanceFixture(t)
	mustRegisterAgent(t, agents, "agent-1")

	m, err := svc.Issue(context.Background(), "agent-1", map[string]string{"repo": "unrelated"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(m.MatchedRules) != 0 {
		t.Fatalf("expected no matched rules, got %+v", m.MatchedRules)
	}
}

func TestIssuanceService_Issue_UnknownAgent(t *testing.T) {
	svc, _, _, _, _ := newIssuanceFixture(t)
	_, err := svc.Issue(context.Background(), "agent-missing", map[string]string{})
	var apiErr *apierr.Error
	if err == nil {
		t.Fatalf("expected error for unknown agent")
	}
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestIssuanceService_Issue_InactiveAgent(t *testing.T) {
	svc, agents, _, _, _ := newIssuanceFixture(t)
	mustRegisterAgent(t, agents, "agent-1")
	_ = agents.SetStatus(context.Background(), "agent-1", agent.StatusInactive)

	_, err := svc.Issue(context.Background(), "agent-1", map[string]string{})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindAgentInactive {
		t.Fatalf("expected AGENT_INACTIVE, got %v", err)
	}
}

func TestIssuanceService_Issue_KilledAgent(t *testing.T) {
	svc, agents, _, _, kills := newIssuanceFixture(t)
	mustRegisterAgent(t, agents, "agent-1")
	_ = kills.Kill(context.Background(), "agent-1", "compromised", "admin-1")

	_, err := svc.Issue(context.Background(), "agent-1", map[string]string{})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindAgentKilled {
		t.Fatalf("expected AGENT_KILLED, got %v", err)
	}
}

func TestIssuanceService_Issue_RejectsBadContext(t *testing.T) {
	svc, agents, _, _, _ := newIssuanceFixture(t)
	mustRegisterAgent(t, agents, "agent-1")

	_, err := svc.Issue(context.Background(), "agent-1", map[string]string{"bad key!": "x"})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindInvalidContext {
		t.Fatalf("expected INVALID_CONTEXT, got %v", err)
	}
}

package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
	"github.com/mandate-authority/mandate-authority/internal/domain/audit"
	"github.com/mandate-authority/mandate-authority/internal/domain/identifier"
	"github.com/mandate-authority/mandate-authority/internal/domain/kill"
	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
	"github.com/mandate-authority/mandate-authority/internal/domain/sanitize"
)

// tracer emits spans around Issue when a TracerProvider has been
// configured (see cmd/mandate-authority/cmd/tracing.go); with no
// provider configured this is otel's no-op tracer, so the calls below
// are inert rather than conditional.
var tracer = otel.Tracer("mandate-authority/issuance")

// IssuanceService is the C8 orchestrator: it strings together the
// context sanitiser (C2), rule evaluator (C5), policy composer (C6),
// and mandate store (C7) into the single issue() operation spec §4.4
// defines. Grounded on the teacher's top-level gateway service, which
// plays the same "compose several pure/stateless components into one
// request-handling operation" role.
type IssuanceService struct {
	agents    agent.Store
	evaluator *policy.Evaluator
	mandates  mandate.Store
	kills     kill.Registry
	sanitizer *sanitize.Sanitizer
	auditSvc  *AuditService
	logger    *slog.Logger
	now       func() time.Time
}

func NewIssuanceService(
	agents agent.Store,
	evaluator *policy.Evaluator,
	mandates mandate.Store,
	kills kill.Registry,
	auditSvc *AuditService,
	logger *slog.Logger,
) *IssuanceService {
	return &IssuanceService{
		agents:    agents,
		evaluator: evaluator,
		mandates:  mandates,
		kills:     kills,
		sanitizer: sanitize.New(),
		auditSvc:  auditSvc,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Issue runs the full 9-step flow from spec §4.4: validate the agent
// is active, check the kill registry, sanitise the raw context,
// evaluate rules, compose the matched policies' authority, mint a
// mandate ID, persist the mandate, append an audit entry, and return
// it.
func (s *IssuanceService) Issue(ctx context.Context, agentID string, rawContext map[string]string) (*mandate.Mandate, error) {
	ctx, span := tracer.Start(ctx, "IssuanceService.Issue", trace.WithAttributes(attribute.String("agent_id", agentID)))
	defer span.End()

	a, err := s.agents.Get(ctx, agentID)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "agent not found")
	}
	if !a.IsActive() {
		return nil, apierr.New(apierr.KindAgentInactive, "agent is not active")
	}

	killed, err := s.kills.IsKilled(ctx, agentID)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStoreUnavailable, "check kill registry", err)
	}
	if killed {
		return nil, apierr.New(apierr.KindAgentKilled, "agent is killed")
	}

	sanitized, err := s.sanitizer.Sanitize(rawContext)
	if err != nil {
		return nil, err
	}

	matches, err := s.evaluator.Evaluate(ctx, agentID, sanitized)
	if err != nil {
		return nil, err
	}

	authorities := make([]policy.Authority, 0, len(matches))
	policyRefs := make([]mandate.PolicyRef, 0, len(matches))
	ruleRefs := make([]mandate.RuleRef, 0, len(matches))
	for _, m := range matches {
		authorities = append(authorities, m.Policy.Authority)
		policyRefs = append(policyRefs, mandate.PolicyRef{PolicyID: m.Policy.PolicyID, Version: m.Policy.Version})
		ruleRefs = append(ruleRefs, mandate.RuleRef{RuleID: m.Rule.RuleID, Version: m.Rule.Version})
	}

	composed, err := policy.Compose(authorities)
	if err != nil {
		return nil, err
	}

	mandateID, err := identifier.NewMandateID()
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInvalidInput, "mint mandate id", err)
	}

	now := s.now()
	m := &mandate.Mandate{
		MandateID:       mandateID,
		AgentID:         agentID,
		Context:         sanitized,
		Authority:       composed,
		MatchedRules:    ruleRefs,
		AppliedPolicies: policyRefs,
		IssuedAt:        now,
		ExpiresAt:       now.Add(mandate.TTL),
		SchemaVersion:   1,
	}

	if err := s.mandates.Create(ctx, m); err != nil {
		wrapped := apierr.Wrap(apierr.KindStoreUnavailable, "persist mandate", err)
		span.RecordError(wrapped)
		return nil, wrapped
	}

	span.SetAttributes(attribute.String("mandate_id", mandateID))

	if s.auditSvc != nil {
		s.auditSvc.Record(audit.Entry{
			AgentID:      agentID,
			ActionID:     mandateID,
			Timestamp:    now,
			ActionType:   audit.ActionTypeMandateIssued,
			Decision:     audit.DecisionAllow,
			Reason:       "mandate issued",
			Context:      sanitized,
			MatchedRules: toAuditRuleRefs(ruleRefs),
		})
	}

	return m, nil
}

func toAuditRuleRefs(refs []mandate.RuleRef) []audit.RuleRef {
	out := make([]audit.RuleRef, len(refs))
	for i, r := range refs {
		out[i] = audit.RuleRef{RuleID: r.RuleID, Version: r.Version}
	}
	return out
}

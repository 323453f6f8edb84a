// Package mandate is the embeddable runtime surface for Go programs
// that enforce a mandate in-process rather than over HTTP: wire a
// state.Manager backend and an audit.Store, hand it a mandate fetched
// from the issuance server, and call Do for every tool/LLM action the
// agent attempts. It is a thin composition of internal/domain/state
// (C10) and internal/domain/enforce (C11/C12) — the same packages the
// server itself runs the enforcement side against — so a program that
// embeds this package gets byte-identical authorize/settle/commit
// semantics to a mandate-authority server running the distributed
// Redis backend.
//
// Grounded on the teacher's sdks/go package: that SDK calls out to a
// running server over HTTP for every decision, which is the right
// shape for a process that cannot embed Go code. Runtime plays the
// equivalent role for a process that can: no network hop, no HTTP
// client, just the domain logic linked directly into the caller's
// binary.
package mandate

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mandate-authority/mandate-authority/internal/domain/audit"
	"github.com/mandate-authority/mandate-authority/internal/domain/enforce"
	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
	"github.com/mandate-authority/mandate-authority/internal/domain/state"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

// tracer emits the two-phase executor span this package is the home
// for: internal/domain/enforce stays I/O-free and must not import
// otel itself, so the span wraps Do here instead, one level up.
var tracer = otel.Tracer("mandate-authority/pkg/mandate")

// Action, RunFunc, VerifyFunc, ChargingPolicy, ChargeMode, and
// BlockedError are re-exported from internal/domain/enforce so callers
// of this package never need an internal import.
type (
	Action         = enforce.Action
	RunFunc        = enforce.RunFunc
	VerifyFunc     = enforce.VerifyFunc
	ChargingPolicy = enforce.ChargingPolicy
	ChargeMode     = enforce.ChargeMode
	BlockedError   = enforce.BlockedError
)

const (
	ChargeSuccessBased = enforce.ChargeSuccessBased
	ChargeAttemptBased = enforce.ChargeAttemptBased
	ChargeTiered       = enforce.ChargeTiered
	ChargeCustom       = enforce.ChargeCustom
)

// Mandate is re-exported so embedding programs can unmarshal a mandate
// fetched from the issuance server's JSON response without importing
// the internal package directly.
type Mandate = mandate.Mandate

// Runtime wraps one state.Manager and one audit.Store behind the
// two-phase authorize/execute/settle/commit cycle (spec §4.6),
// generalised from per-call wiring (as internal/service wires one
// Executor per server process) to a small embeddable type a library
// consumer constructs once and reuses across every action its agent
// attempts.
type Runtime struct {
	executor *enforce.Executor
	states   state.Manager
	logger   *slog.Logger
	stats    *service.StatsService
}

// config collects New's constructor-time options before the Executor
// (which needs the final clock and stats recorder) is built.
type config struct {
	now   func() time.Time
	stats *service.StatsService
}

// Option configures a Runtime.
type Option func(*config, *Runtime)

// WithLogger attaches a logger for Runtime-level diagnostics (state
// manager errors, kill notifications). Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(_ *config, r *Runtime) { r.logger = logger }
}

// WithClock overrides the executor's notion of "now", for tests that
// need deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config, _ *Runtime) { c.now = now }
}

// WithStats has every Do call report its allow/block outcome (and,
// on block, the engine Code) to s. Callers that also run an
// inbound/http.Server in the same process can pass the same
// *service.StatsService to http.WithStatsService to expose these
// counters on GET /stats.
func WithStats(s *service.StatsService) Option {
	return func(c *config, _ *Runtime) { c.stats = s }
}

// New constructs a Runtime over the given state backend and audit
// sink. states is typically memorystate.New() for a single-process
// embedding or a redisstate.Manager for one that must share kill
// propagation and budget state with other processes/executors.
// auditStore may be nil to disable audit logging entirely.
func New(states state.Manager, auditStore audit.Store, opts ...Option) *Runtime {
	r := &Runtime{states: states, logger: slog.Default()}
	c := &config{}
	for _, opt := range opts {
		opt(c, r)
	}

	var execOpts []enforce.ExecutorOption
	if c.stats != nil {
		r.stats = c.stats
		execOpts = append(execOpts, enforce.WithStatsRecorder(c.stats))
	}
	r.executor = enforce.NewExecutor(states, auditStore, c.now, execOpts...)
	return r
}

// Stats returns the current allow/block tally, and false if this
// Runtime was constructed without WithStats.
func (r *Runtime) Stats() (service.Stats, bool) {
	if r.stats == nil {
		return service.Stats{}, false
	}
	return r.stats.GetStats(), true
}

// Do runs the full authorize → execute → verify → settle → commit
// cycle for one action against m, under charging. It wraps
// Executor.Execute with the tracing span spec's two-phase executor
// requirement calls for — kept here rather than in
// internal/domain/enforce because that package must stay pure and
// dependency-free of any tracing SDK.
//
// A *BlockedError return means run was never called — no side effect
// occurred. Any other non-nil error after run was invoked means the
// side effect happened but either failed verification or could not be
// committed; see Executor.Execute's doc comment for the
// apierr.KindInconsistentSettlement case, which callers should treat
// as "the action ran, the books may not reflect it — alert, do not
// blindly retry."
func (r *Runtime) Do(ctx context.Context, action Action, m *Mandate, charging ChargingPolicy, run RunFunc, verify VerifyFunc) (any, error) {
	ctx, span := tracer.Start(ctx, "mandate.Runtime.Do", trace.WithAttributes(
		attribute.String("agent_id", action.AgentID),
		attribute.String("mandate_id", m.MandateID),
		attribute.String("tool_name", action.ToolName),
	))
	defer span.End()

	result, err := r.executor.Execute(ctx, action, m, charging, run, verify)
	if err != nil {
		span.RecordError(err)
		if blocked, ok := err.(*BlockedError); ok {
			span.SetAttributes(attribute.String("block_code", string(blocked.Code)))
		}
	}
	return result, err
}

// Kill marks (agentID, mandateID) killed across every process sharing
// this Runtime's state backend. Safe to call from a monitoring loop
// that watches for anomalous behavior independent of Do's call sites.
func (r *Runtime) Kill(ctx context.Context, agentID, mandateID, reason string) error {
	return r.states.Kill(ctx, agentID, mandateID, reason)
}

// IsKilled reports the current kill bit for (agentID, mandateID).
func (r *Runtime) IsKilled(ctx context.Context, agentID, mandateID string) (bool, error) {
	return r.states.IsKilled(ctx, agentID, mandateID)
}

// SubscribeKill registers handler to run whenever (agentID, mandateID)
// is killed, whether the kill originated from this process's own
// Kill call or propagated from another executor via the distributed
// backend's pub/sub channel (spec P6). Typical use: cancel the
// agent's in-flight work loop as soon as a human operator kills it.
func (r *Runtime) SubscribeKill(ctx context.Context, agentID, mandateID string, handler state.KillHandler) (func(), error) {
	return r.states.SubscribeKill(ctx, agentID, mandateID, handler)
}

// State returns the current state snapshot for (agentID, mandateID),
// useful for a caller that wants to display remaining budget without
// attempting an action.
func (r *Runtime) State(ctx context.Context, agentID, mandateID string) (state.State, error) {
	return r.states.Get(ctx, agentID, mandateID)
}

// Close releases the underlying state backend's resources
// (connections, subscriber goroutines). The caller still owns
// construction/teardown of anything it passed into New beyond what
// the state.Manager interface covers (e.g. a shared *redis.Client).
func (r *Runtime) Close() error {
	return r.states.Close()
}

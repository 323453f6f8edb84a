package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mandate-authority/mandate-authority/internal/service"
)

// shutdownTimeout bounds how long Stop waits for in-flight requests
// to finish before forcing the listener closed.
const shutdownTimeout = 10 * time.Second

// Server is the inbound HTTP transport: a single net/http.ServeMux
// exposing spec §6's full endpoint table, with per-route auth exactly
// as that table specifies. Grounded on the teacher's HTTPTransport:
// same functional-options construction and the same
// Start(ctx)/graceful-shutdown shape, generalized from a single MCP
// JSON-RPC endpoint to a REST resource surface.
type Server struct {
	addr     string
	logger   *slog.Logger
	metrics  *Metrics
	promReg  prometheus.Gatherer
	srv      *http.Server

	agents   *service.AgentService
	kills    *service.KillService
	policies *service.PolicyAdminService
	rules    *service.RuleAdminService
	issuance *service.IssuanceService
	mandates *service.MandateService
	auditSvc *service.AuditService
	health   *HealthChecker
	stats    *service.StatsService
}

// Option configures a Server.
type Option func(*Server)

func WithAddr(addr string) Option { return func(s *Server) { s.addr = addr } }

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

func WithMetrics(m *Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithPromRegistry mounts GET /metrics, serving reg in the standard
// Prometheus exposition format. Pass the same registry used to build
// the Metrics passed to WithMetrics so /metrics reports the counters
// the middleware records.
func WithPromRegistry(reg prometheus.Gatherer) Option {
	return func(s *Server) { s.promReg = reg }
}

func WithAgentService(svc *service.AgentService) Option {
	return func(s *Server) { s.agents = svc }
}

func WithKillService(svc *service.KillService) Option {
	return func(s *Server) { s.kills = svc }
}

func WithPolicyAdminService(svc *service.PolicyAdminService) Option {
	return func(s *Server) { s.policies = svc }
}

func WithRuleAdminService(svc *service.RuleAdminService) Option {
	return func(s *Server) { s.rules = svc }
}

func WithIssuanceService(svc *service.IssuanceService) Option {
	return func(s *Server) { s.issuance = svc }
}

func WithMandateService(svc *service.MandateService) Option {
	return func(s *Server) { s.mandates = svc }
}

func WithAuditService(svc *service.AuditService) Option {
	return func(s *Server) { s.auditSvc = svc }
}

func WithHealthChecker(hc *HealthChecker) Option {
	return func(s *Server) { s.health = hc }
}

// WithStatsService mounts GET /stats, reporting svc's allow/block
// tally. Pass the same *service.StatsService given to pkg/mandate's
// WithStats so a colocated issuance-server-plus-embedded-runtime
// deployment exposes one consistent view of enforcement outcomes.
func WithStatsService(svc *service.StatsService) Option {
	return func(s *Server) { s.stats = svc }
}

// NewServer builds a Server from opts. Call Start to begin serving.
func NewServer(opts ...Option) *Server {
	s := &Server{
		addr:   ":8080",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// routes assembles spec §6's endpoint table onto a single ServeMux,
// wrapping bearer-protected routes with BearerAuthMiddleware and
// leaving the rest open exactly as the table specifies.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	agentH := &agentHandlers{agents: s.agents, kills: s.kills}
	policyH := &policyHandlers{policies: s.policies}
	ruleH := &ruleHandlers{rules: s.rules}
	mandateH := &mandateHandlers{issuance: s.issuance, mandates: s.mandates}
	auditH := &auditHandlers{audit: s.auditSvc}

	bearerAuth := BearerAuthMiddleware(s.agents)

	// Agents: CRUD + kill-status are open; kill/resurrect are self-only
	// bearer-protected (spec §6).
	mux.HandleFunc("POST /agents", agentH.handleRegister)
	mux.HandleFunc("GET /agents", agentH.handleList)
	mux.HandleFunc("GET /agents/{id}", agentH.handleGet)
	mux.HandleFunc("PUT /agents/{id}", agentH.handleUpdate)
	mux.HandleFunc("DELETE /agents/{id}", agentH.handleDelete)
	mux.HandleFunc("GET /agents/{id}/kill-status", agentH.handleKillStatus)
	mux.Handle("POST /agents/{id}/kill", bearerAuth(http.HandlerFunc(agentH.handleKill)))
	mux.Handle("POST /agents/{id}/resurrect", bearerAuth(http.HandlerFunc(agentH.handleResurrect)))

	// Policies and rules: operator CRUD surface, no bearer auth.
	mux.HandleFunc("POST /policies", policyH.handleCreate)
	mux.HandleFunc("GET /policies", policyH.handleList)
	mux.HandleFunc("GET /policies/{id}", policyH.handleGet)
	mux.HandleFunc("PUT /policies/{id}", policyH.handleUpdate)
	mux.HandleFunc("DELETE /policies/{id}", policyH.handleDelete)

	mux.HandleFunc("POST /rules", ruleH.handleCreate)
	mux.HandleFunc("GET /rules", ruleH.handleList)
	mux.HandleFunc("GET /rules/{id}", ruleH.handleGet)
	mux.HandleFunc("PUT /rules/{id}", ruleH.handleUpdate)
	mux.HandleFunc("DELETE /rules/{id}", ruleH.handleDelete)

	// Mandates and audit: agent-facing, bearer-protected.
	mux.Handle("POST /mandates/issue", bearerAuth(http.HandlerFunc(mandateH.handleIssue)))
	mux.Handle("GET /mandates/{id}", bearerAuth(http.HandlerFunc(mandateH.handleGet)))

	mux.Handle("POST /audit", bearerAuth(http.HandlerFunc(auditH.handleSubmit)))
	mux.Handle("POST /audit/bulk", bearerAuth(http.HandlerFunc(auditH.handleBulkSubmit)))
	mux.Handle("GET /audit", bearerAuth(http.HandlerFunc(auditH.handleQuery)))

	if s.health != nil {
		mux.Handle("GET /health", s.health.Handler())
	}

	if s.stats != nil {
		mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.stats.GetStats())
		})
	}

	if s.promReg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	handler = RequestIDMiddleware(s.logger)(handler)
	handler = RealIPMiddleware(handler)
	if s.metrics != nil {
		handler = MetricsMiddleware(s.metrics)(handler)
	}
	return handler
}

// Start begins serving and blocks until ctx is cancelled, at which
// point it gracefully shuts down within shutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts down the server, bounded by shutdownTimeout.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	inbound "github.com/mandate-authority/mandate-authority/internal/adapter/inbound/http"
	auditadapter "github.com/mandate-authority/mandate-authority/internal/adapter/outbound/audit"
	"github.com/mandate-authority/mandate-authority/internal/adapter/outbound/cel"
	"github.com/mandate-authority/mandate-authority/internal/adapter/outbound/memory"
	"github.com/mandate-authority/mandate-authority/internal/config"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

var serveDevMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the issuance server and admin HTTP surface",
	Long: `Start the mandate authority HTTP server: agent/policy/rule admin
CRUD, mandate issuance and lookup, audit submission and query, and a
health endpoint, per the full endpoint table the service exposes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "enable development mode (permissive defaults, debug logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveDevMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	stores, err := newPersistenceStores(cfg)
	if err != nil {
		return fmt.Errorf("failed to open persistence stores: %w", err)
	}
	defer stores.close()
	agentStore, policyStore, ruleStore, mandates := stores.agents, stores.policies, stores.rules, stores.mandates

	kills := memory.NewKillRegistry()

	celEvaluator, err := cel.NewEvaluator()
	if err != nil {
		logger.Warn("CEL evaluator unavailable, \"cel\" conditions will fail closed", "error", err)
		celEvaluator = nil
	}
	var celIface policy.CELEvaluator
	if celEvaluator != nil {
		celIface = celEvaluator
	}

	evaluator := policy.NewEvaluator(agentStore, ruleStore, policyStore, celIface)

	auditStore, err := auditadapter.NewFileStore(auditadapter.FileStoreConfig{
		Dir: cfg.Audit.Dir,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer auditStore.Close()

	auditSvc := service.NewAuditService(auditStore, logger,
		service.WithChannelSize(cfg.Audit.ChannelSize),
		service.WithBatchSize(cfg.Audit.BatchSize),
		service.WithFlushInterval(parseDurationOrDefault(cfg.Audit.FlushInterval, time.Second)),
		service.WithSendTimeout(parseDurationOrDefault(cfg.Audit.SendTimeout, 100*time.Millisecond)),
		service.WithWarningThreshold(cfg.Audit.WarningThreshold),
	)
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	agents := service.NewAgentService(agentStore)
	killSvc := service.NewKillService(kills, agentStore)
	policies := service.NewPolicyAdminService(policyStore)
	rules := service.NewRuleAdminService(ruleStore)
	issuance := service.NewIssuanceService(agentStore, evaluator, mandates, kills, auditSvc, logger)
	mandateSvc := service.NewMandateService(mandates)

	opts := []inbound.Option{
		inbound.WithAddr(cfg.Server.HTTPAddr),
		inbound.WithLogger(logger),
		inbound.WithAgentService(agents),
		inbound.WithKillService(killSvc),
		inbound.WithPolicyAdminService(policies),
		inbound.WithRuleAdminService(rules),
		inbound.WithIssuanceService(issuance),
		inbound.WithMandateService(mandateSvc),
		inbound.WithAuditService(auditSvc),
		inbound.WithHealthChecker(inbound.NewHealthChecker(stores.db, auditSvc)),
	}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		opts = append(opts, inbound.WithMetrics(inbound.NewMetrics(reg)), inbound.WithPromRegistry(reg))
	}

	shutdownTracing, err := setupTracing(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	srv := inbound.NewServer(opts...)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("mandate-authority stopped")
	return nil
}

// parseLogLevel converts a string log level to slog.Level, defaulting
// to info for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseDurationOrDefault parses s as a duration, falling back to def
// on an empty or malformed value rather than failing startup over a
// cosmetic config typo in a non-critical timing knob.
func parseDurationOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/service"
)

// DBPoolStats is the connection-pool snapshot spec §6's health
// endpoint reports under details.database.pool.
type DBPoolStats struct {
	Total   int
	Idle    int
	Waiting int
}

// DatabasePinger is implemented by the persistence backend (the
// sqlite adapter in production, or a test double) so the health
// endpoint can probe it without this package depending on a concrete
// driver. Grounded on the teacher's sessionStore/rateLimiter
// Size()-probe pattern in its own HealthChecker: cheap, synchronous
// calls that double as a liveness check for the backing store.
type DatabasePinger interface {
	Ping(ctx context.Context) error
	Stats() DBPoolStats
	MaxConnections() int
}

// HealthResponse is the JSON body spec §6 defines for GET /health:
// {status, details: {database: {status, pool, maxConnections}}}.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details HealthDetails  `json:"details"`
}

// HealthDetails nests the per-component checks.
type HealthDetails struct {
	Database DatabaseHealth `json:"database"`
}

// DatabaseHealth is spec §6's exact database health shape.
type DatabaseHealth struct {
	Status         string      `json:"status"`
	Pool           DBPoolStats `json:"pool"`
	MaxConnections int         `json:"maxConnections"`
}

// HealthChecker verifies component health for GET /health. Grounded on
// the teacher's HealthChecker (optional components, one overall
// healthy/unhealthy verdict, audit-channel-depth as a backpressure
// signal) but narrowed to spec §6's exact response shape rather than
// the teacher's free-form checks map.
type HealthChecker struct {
	db           DatabasePinger
	auditService *service.AuditService
}

// NewHealthChecker creates a HealthChecker. db may be nil before the
// persistence backend is wired (reports database status "not
// configured"); auditService may be nil in the same circumstance.
func NewHealthChecker(db DatabasePinger, auditService *service.AuditService) *HealthChecker {
	return &HealthChecker{db: db, auditService: auditService}
}

// Check runs all health checks and returns the aggregate result.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	dbHealth := DatabaseHealth{Status: "not configured"}
	healthy := true

	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		dbHealth.Pool = h.db.Stats()
		dbHealth.MaxConnections = h.db.MaxConnections()
		if err := h.db.Ping(pingCtx); err != nil {
			dbHealth.Status = "unhealthy"
			healthy = false
		} else {
			dbHealth.Status = "ok"
		}
	}

	if h.auditService != nil {
		depth := h.auditService.ChannelDepth()
		capacity := h.auditService.ChannelCapacity()
		if capacity > 0 && depth*100/capacity > 90 {
			healthy = false
		}
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Details: HealthDetails{Database: dbHealth},
	}
}

// Handler returns the GET /health handler. No auth required (spec §6).
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())
		status := http.StatusOK
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	})
}
